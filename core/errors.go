package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	// ErrInvalidInput reports caller-supplied data that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports a delete that targeted an absent member.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable reports a transport or connection failure of the store.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrInvalidArgument reports a request the store rejected as malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrWrongType reports a key holding a value of another type than the
	// operation expects. It is a kind of ErrInvalidArgument.
	ErrWrongType = fmt.Errorf("%w: wrong value type", ErrInvalidArgument)
	// ErrDegradedCapability signals that a backend cannot serve an operation
	// efficiently and the caller should take its slow path. It is never
	// surfaced to API callers.
	ErrDegradedCapability = errors.New("degraded capability")
	// ErrTrimFailed reports that an increment succeeded but the follow-up trim
	// did not, so the leaderboard may be temporarily oversized.
	ErrTrimFailed = errors.New("leaderboard trim failed")
)

// OpError describes a failed backend operation.
type OpError struct {
	Backend string
	Op      string
	Key     string
	Kind    error
	Err     error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v: %v", e.Backend, e.Op, e.Key, e.Kind, e.Err)
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *OpError) Unwrap() []error { return []error{e.Kind, e.Err} }

// NewOpError wraps err with operation context and a kind.
func NewOpError(backend, op, key string, kind, err error) *OpError {
	return &OpError{Backend: backend, Op: op, Key: key, Kind: kind, Err: err}
}

// IsBackendUnavailable reports whether err is a transport failure of the store.
func IsBackendUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }

// argumentReplies are server error prefixes that blame the request itself.
var argumentReplies = []string{
	"ERR syntax",
	"ERR value is not",
	"ERR wrong number of arguments",
	"ERR min or max",
	"ERR invalid",
	"ERR increment would produce NaN",
	"ERR resulting score is not a number",
}

// ReplyKind classifies an error reply of a Redis-protocol server. Only
// replies about the arguments or the value type are caller errors; LOADING,
// READONLY, OOM, NOAUTH, rate limits and the rest mean the store cannot
// serve requests right now.
func ReplyKind(msg string) error {
	upper := strings.ToUpper(msg)
	switch {
	case strings.HasPrefix(upper, "WRONGTYPE"):
		return ErrWrongType
	case strings.Contains(upper, "UNKNOWN COMMAND"):
		return ErrDegradedCapability
	}
	for _, prefix := range argumentReplies {
		if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return ErrInvalidArgument
		}
	}
	return ErrBackendUnavailable
}
