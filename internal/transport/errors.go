package transport

import (
	"errors"
	"fmt"
)

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError covers non-2xx answers and error-shaped or malformed payloads.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server error (%d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server error: %s", e.Op, e.Message)
}

// IsNetwork reports whether err is or wraps a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsServer reports whether err is or wraps a *ServerError.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// Message extracts the human readable part of a transport error.
func Message(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) && ne.Err != nil {
		return ne.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
