// Package errs provides the structured error taxonomy shared by the
// Mycelial compiler and runtime. Every error kind named in the language
// spec (lexical/semantic failures, arena exhaustion, oversized payloads,
// queue overflow, dispatch misses, registry misuse, I/O failures) is
// represented as a Kind on a single Error type instead of scattered sentinel
// strings, so callers can branch with errors.Is/As and still get a
// human-readable, contextual message.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a high-level error category, independent of the message text.
type Kind string

const (
	KindLexical         Kind = "lexical"
	KindSemantic        Kind = "semantic"
	KindOutOfMemory     Kind = "out_of_memory"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindQueueFull       Kind = "queue_full"
	KindNoHandler       Kind = "no_handler"
	KindGuardFailed     Kind = "guard_failed"
	KindHandlerFailed   Kind = "handler_failed"
	KindAgentExists     Kind = "agent_exists"
	KindAgentNotFound   Kind = "agent_not_found"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindTableFull       Kind = "table_full"
	KindIO              Kind = "io_error"
	KindInvalidInput    Kind = "invalid_input"
)

// Span locates an error in source text. A zero Span means "no span".
type Span struct {
	Line   int
	Col    int
	Offset int
}

func (s Span) String() string {
	if s.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}

// Error is the structured error carried across package boundaries.
type Error struct {
	Op   string // operation that failed, e.g. "queue.Enqueue", "parser.parseHyphal"
	Kind Kind
	Span Span
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	var where string
	if sp := e.Span.String(); sp != "" {
		where = sp + ": "
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s%s: %s (%s)", where, e.Op, msg, e.Kind)
	}
	return fmt.Sprintf("%s%s (%s)", where, msg, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons against another *Error by Kind, or
// against a bare Kind value via errors.Is(err, SomeKind) would not type
// check (Kind is not an error); use Is(kind) helper instead for that case.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Kind == "" {
		return false
	}
	return e.Kind == te.Kind
}

// New constructs a structured error with no wrapped cause.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewAt constructs a structured error anchored to a source span.
func NewAt(op string, kind Kind, span Span, msg string) *Error {
	return &Error{Op: op, Kind: kind, Span: span, Msg: msg}
}

// Wrap attaches operation context and a kind to an existing error.
func Wrap(op string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok && e.Op == "" {
		e.Op = op
		return e
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Of reports the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
