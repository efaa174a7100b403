package analysis

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failures the pipeline can surface.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigurationMissing
	KindConfigurationInvalid
	KindContentBlocked
	KindEmptyResponse
	KindMalformedResponse
	KindTransportFailure
	KindInvalidInput
)

// Sentinel kinds; *Error matches them with errors.Is.
var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrConfigurationInvalid = errors.New("configuration invalid")
	ErrContentBlocked       = errors.New("content blocked")
	ErrEmptyResponse        = errors.New("empty response")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrTransportFailure     = errors.New("transport failure")
	ErrInvalidInput         = errors.New("invalid input")
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindConfigurationInvalid:
		return "configuration_invalid"
	case KindContentBlocked:
		return "content_blocked"
	case KindEmptyResponse:
		return "empty_response"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTransportFailure:
		return "transport_failure"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfigurationMissing:
		return ErrConfigurationMissing
	case KindConfigurationInvalid:
		return ErrConfigurationInvalid
	case KindContentBlocked:
		return ErrContentBlocked
	case KindEmptyResponse:
		return ErrEmptyResponse
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindTransportFailure:
		return ErrTransportFailure
	case KindInvalidInput:
		return ErrInvalidInput
	default:
		return nil
	}
}

// Error is the typed failure returned by every pipeline stage.
type Error struct {
	Kind Kind
	Op   string // stage: "credential", "prompt", "invoke", "parse"
	Err  error
}

// NewError builds a typed failure. msg and args follow fmt.Errorf, so %w is allowed.
func NewError(kind Kind, op, msg string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(msg, args...)}
}

// Wrap tags err with kind without changing its message.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the kind carried by err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
