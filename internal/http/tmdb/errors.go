package tmdb

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound  = errors.New("not found on TMDB")
	ErrTransient = errors.New("transient TMDB failure")
)

type (
	tmdbError struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	FailedRequestError struct {
		httpCode int
		tmdbCode int
		message  string
	}
	UnknownRequestError struct{ reason string }
)

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with TMDB: %s", err.reason)
}
func (err *UnknownRequestError) Unwrap() error { return ErrTransient }

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("Request failure (HTTP %d): %s", err.httpCode, err.message)
}

// Unwrap classifies the failure: a 404 means the movie is unknown to TMDB, anything
// else is considered transient.
func (err *FailedRequestError) Unwrap() error {
	if err.httpCode == http.StatusNotFound {
		return ErrNotFound
	}

	return ErrTransient
}

func (err *FailedRequestError) StatusCode() int { return err.httpCode }
