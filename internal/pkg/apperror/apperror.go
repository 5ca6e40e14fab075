package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Kind classifies an error by how callers must react to it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindTransientExternal
	KindPermanentExternal
	KindNormalization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindTransientExternal:
		return "transient_external"
	case KindPermanentExternal:
		return "permanent_external"
	case KindNormalization:
		return "normalization"
	default:
		return "unknown"
	}
}

// Error is the typed error shared by ingestion and sync code.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: RedactURL(err)}
}

func Validation(op, message string) *Error { return New(KindValidation, op, message) }
func Auth(op, message string) *Error       { return New(KindAuth, op, message) }
func NotFound(op, message string) *Error   { return New(KindNotFound, op, message) }

func Transient(op string, err error) *Error { return Wrap(KindTransientExternal, op, err) }
func Permanent(op string, err error) *Error { return Wrap(KindPermanentExternal, op, err) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a transient fault worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return Is(err, KindTransientExternal)
}

// FromHTTPStatus maps a provider HTTP response to a typed error. body is kept
// short in the message since provider error bodies can be large.
func FromHTTPStatus(op string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	e := &Error{Op: op, StatusCode: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests || status >= 500:
		e.Kind = KindTransientExternal
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	default:
		e.Kind = KindPermanentExternal
	}
	return e
}

// FromTransport classifies an error returned by http.Client.Do. Caller
// cancellation passes through untouched, anything else is a network fault.
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return RedactURL(err)
	}
	return Transient(op, err)
}

// RedactURL replaces a *url.Error in err with a copy whose URL has no query
// string. Provider credentials travel as query parameters and must not reach
// stored messages or logs. The underlying cause stays in the chain.
func RedactURL(err error) error {
	var uerr *url.Error
	if err == nil || !errors.As(err, &uerr) {
		return err
	}
	base, _, found := strings.Cut(uerr.URL, "?")
	if !found {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: base, Err: uerr.Err}
}
