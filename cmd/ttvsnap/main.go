package main

import (
	"os"

	"github.com/ttvsnap/ttvsnap/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
