package ddns

import (
	"errors"
	"fmt"
)

var (
	// ErrIPUnavailable is returned when every provider for a required family failed.
	ErrIPUnavailable = errors.New("ip unavailable")

	// ErrAuthMissing is returned when no credential could be found without prompting.
	ErrAuthMissing = errors.New("no credential available")

	// ErrNetwork marks transport failures talking to the update endpoint.
	ErrNetwork = errors.New("network error")

	// ErrServerRejected marks update responses that were received but not accepted.
	ErrServerRejected = errors.New("update rejected by server")

	// ErrStateCorrupt marks unreadable state files. It is logged, never returned by Load.
	ErrStateCorrupt = errors.New("state file corrupt")
)

// ErrorKind classifies a failed update.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindServerRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network_error"
	case KindServerRejected:
		return "server_rejected"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// UpdateError describes why a dispatch did not apply.
//
// errors.Is(err, ErrNetwork) and errors.Is(err, ErrServerRejected) match on Kind.
type UpdateError struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status, 0 when no response was received
	Code       string // error code reported by the server, if any
	Message    string
	Err        error
}

func (e *UpdateError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpdateError) Unwrap() error { return e.Err }

func (e *UpdateError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServerRejected:
		return e.Kind == KindServerRejected
	}
	return false
}

func networkError(status int, err error) *UpdateError {
	return &UpdateError{Kind: KindNetwork, StatusCode: status, Err: err}
}

func rejectedError(status int, code, message string) *UpdateError {
	return &UpdateError{Kind: KindServerRejected, StatusCode: status, Code: code, Message: message}
}
