package internal

import "fmt"

// StoreUnavailableError represents a database file that is missing or
// cannot be opened as a valid SQLite store.
type StoreUnavailableError struct {
	Path string
	Err  error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Path, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// QueryError represents a failed read query against an open store.
// Callers must not assume partial results when they receive one.
type QueryError struct {
	Path  string
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed [%s] %s: %v", e.Path, e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// DecodeError represents a stored value that is not valid JSON and
// whose transport decoding also failed. Scope is one record; callers
// drop the record and continue.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed [%s]: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
