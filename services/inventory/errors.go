package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested machine has no current-state record.
var ErrNotFound = errors.New("inventory: not found")

// Kind classifies failures of the ingestion and query paths.
type Kind int

const (
	// KindStorage covers persistence failures and anything unclassified.
	KindStorage Kind = iota
	KindMalformedSyntax
	KindMalformedShape
	KindUnsupportedMedia
	KindInvalid
	KindTooLarge
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindMalformedSyntax:
		return "malformed_syntax"
	case KindMalformedShape:
		return "malformed_shape"
	case KindUnsupportedMedia:
		return "unsupported_media"
	case KindInvalid:
		return "invalid"
	case KindTooLarge:
		return "too_large"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "storage"
	}
}

// Violation names one failed rule on one field.
type Violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (v Violation) String() string {
	if v.Param == "" {
		return v.Field + ":" + v.Rule
	}
	return v.Field + ":" + v.Rule + "=" + v.Param
}

// Error is the typed failure returned by the ingestion path.
type Error struct {
	Kind       Kind
	Err        error
	Violations []Violation
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are KindStorage.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindStorage
}

// ViolationsOf returns the validation violations carried by err, if any.
func ViolationsOf(err error) []Violation {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}
