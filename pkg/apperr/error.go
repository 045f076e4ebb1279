// Package apperr provides a structured error type for the pipeline's
// component boundaries, so callers can branch on failure kind instead of
// string-matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which §7 error policy row an error belongs to.
type Kind string

const (
	KindProviderUnknown   Kind = "provider_unknown"
	KindAuthFailure       Kind = "auth_failure"
	KindIMAPTransport     Kind = "imap_transport"
	KindMIMEParse         Kind = "mime_parse"
	KindAttachmentPolicy  Kind = "attachment_policy"
	KindDedupeQuery       Kind = "dedupe_query"
	KindSummarizerFailure Kind = "summarizer_failure"
	KindStoreWrite        Kind = "store_write"
	KindGateRejected      Kind = "gate_rejected"
	KindSchedulerSuspend  Kind = "scheduler_suspend"
)

// Error is a typed, wrapped error carrying a diagnostic string and the kind
// of failure so upstream code (the pipeline, the scheduler) can decide
// whether to skip, log-and-continue, or fall back.
type Error struct {
	Kind       Kind
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Diagnostic, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, diagnostic string) *Error {
	return &Error{Kind: kind, Diagnostic: diagnostic}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, diagnostic string, err error) *Error {
	return &Error{Kind: kind, Diagnostic: diagnostic, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
