package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrFileWrite struct {
	Path string
	Err  error
}

func (e *ErrFileWrite) Error() string {
	return fmt.Sprintf("failed to write file %s: %v", e.Path, e.Err)
}

func (e *ErrFileWrite) Unwrap() error {
	return e.Err
}

// Twitch API errors

// ErrAPI is an error payload returned by the Helix API in place of data.
type ErrAPI struct {
	Status  int
	Code    string
	Message string
}

func (e *ErrAPI) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d %s", e.Status, e.Code)
}

// ErrTokenExchange means no access token was obtained from the OAuth endpoint.
// Body keeps the raw response for diagnostics.
type ErrTokenExchange struct {
	Status int
	Body   string
	Err    error
}

func (e *ErrTokenExchange) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("token exchange failed with status %d", e.Status)
	}
}

func (e *ErrTokenExchange) Unwrap() error {
	return e.Err
}

// Image errors

// ErrImageFetch is returned when the preview image could not be fetched or saved.
type ErrImageFetch struct {
	URL    string
	Status int
	Err    error
}

func (e *ErrImageFetch) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image fetch %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("image fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *ErrImageFetch) Unwrap() error {
	return e.Err
}

// ErrNoFreshness means a response carried none of the recognized freshness header combinations.
type ErrNoFreshness struct{}

func (e *ErrNoFreshness) Error() string {
	return "no usable freshness metadata"
}

// External tool errors

type ErrThumbnail struct {
	Path string
	Err  error
}

func (e *ErrThumbnail) Error() string {
	return fmt.Sprintf("thumbnail generation for %s failed: %v", e.Path, e.Err)
}

func (e *ErrThumbnail) Unwrap() error {
	return e.Err
}
