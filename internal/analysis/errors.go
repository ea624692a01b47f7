package analysis

import (
	"fmt"
)

// ErrorKind classifies why a submission failed.
type ErrorKind int

const (
	// NoFileSelected: Submit was called without a file.
	NoFileSelected ErrorKind = iota + 1
	// AlreadyInFlight: another submission is still running.
	AlreadyInFlight
	// ServerReported: the backend answered 2xx but said success=false.
	ServerReported
	// HTTPStatus: the backend answered with a non-2xx status.
	HTTPStatus
	// NoResponse: the request went out but nothing usable came back.
	NoResponse
	// ClientSide: the request could not be built or sent.
	ClientSide
)

func (k ErrorKind) String() string {
	switch k {
	case NoFileSelected:
		return "no_file_selected"
	case AlreadyInFlight:
		return "already_in_flight"
	case ServerReported:
		return "server_reported"
	case HTTPStatus:
		return "http_status"
	case NoResponse:
		return "no_response"
	case ClientSide:
		return "client_side"
	default:
		return "unknown"
	}
}

// Error is returned by Submit. Compare kinds with errors.Is against a
// bare &Error{Kind: ...}.
type Error struct {
	Kind   ErrorKind
	Status int    // HTTP status, HTTPStatus only
	Detail string // best available human-readable detail
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case NoFileSelected:
		return "please select a file"
	case AlreadyInFlight:
		return "an analysis is already in progress"
	case ServerReported:
		if e.Detail != "" {
			return e.Detail
		}
		return "unknown server error"
	case HTTPStatus:
		if e.Detail != "" {
			return e.Detail
		}
		return fmt.Sprintf("server error (%d)", e.Status)
	case NoResponse:
		if e.Detail != "" {
			return "no response from server: " + e.Detail
		}
		return "no response from server"
	default:
		if e.Detail != "" {
			return e.Detail
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return "request failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Consolidated is the single operator-facing line for this failure.
func (e *Error) Consolidated() string {
	return "Details: " + e.Error() + ". Verify the server is running."
}
