package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"
)

// NewHTTPServer returns an http.Server for the status endpoints. Every
// response is small, so the timeouts are short.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// GracefulShutdown waits up to timeout for in-flight requests, then closes
// the remaining connections.
func GracefulShutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if stderrors.Is(err, context.DeadlineExceeded) {
		if closeErr := srv.Close(); closeErr != nil {
			return closeErr
		}
	}
	return err
}
