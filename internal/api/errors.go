package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by a *StatusError carrying 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidResponse reports a 2xx body that could not be understood.
var ErrInvalidResponse = errors.New("invalid response from server")

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	// Detail is the server's detail message, empty when absent or not a string.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
