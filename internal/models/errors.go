package models

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a missing or invalid credential.
	KindConfig
	// KindTransport is a network failure or a non-2xx response.
	KindTransport
	// KindSemantic is a 2xx response whose body reports an error.
	KindSemantic
	// KindPersistence is a failed cache store write. Never fatal.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindSemantic:
		return "semantic"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error carries the failure kind alongside the operation that produced it.
// Message is the provider's own wording, when it supplied one.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare *Error target of the same kind, so
// errors.Is(err, ErrMissingCredential) holds for every config error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var ErrMissingCredential = &Error{Kind: KindConfig, Message: "TMDb API credential is not configured"}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the embedded provider message of the first *Error in
// err's chain, or "".
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
