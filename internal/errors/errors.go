// Package errors implements the error taxonomy of spec S7: every failure
// the evaluator or parser can raise carries a Kind, a message, the source
// span active when it happened, and (for evaluator errors) the call-frame
// chain at the point of failure -- adapted from the donor's SentraError,
// re-pointed at this language's Kind set and span/call-frame shapes.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy of spec S7.
type Kind string

const (
	Syntax             Kind = "Syntax"
	Lex                Kind = "Lex"
	NothingToPop       Kind = "NothingToPop"
	NotANumber         Kind = "NotANumber"
	UnsupportedType    Kind = "UnsupportedType"
	UndefinedSymbol    Kind = "UndefinedSymbol"
	SymbolRedefinition Kind = "SymbolRedefinition"
	Runtime            Kind = "Runtime"
	ContextFail        Kind = "ContextFail"
	Unimplemented      Kind = "Unimplemented"
)

// Location is a source position, carried by value rather than by span
// index so this package stays independent of the vm package's SpanTable.
type Location struct {
	File   string
	Line   int
	Column int
}

// Frame is one entry of the call-frame chain active when an error was
// raised (spec S3 "Call-frame list").
type Frame struct {
	Function string
	Location Location
}

// LangError is the concrete error type every handler in this repo
// returns. Its shape mirrors the donor's SentraError: a typed Kind,
// message, location, call stack, and optional source-line context.
type LangError struct {
	Kind      Kind
	Message   string
	Location  Location
	CallStack []Frame
	Source    string
	cause     error
}

// New creates a bare LangError with no location -- callers that have a
// span attach one with WithLocation before it escapes the evaluator.
func New(kind Kind, message string) *LangError {
	return &LangError{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *LangError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches an underlying cause to a new ContextFail-flavored error
// using github.com/pkg/errors, which preserves the cause's own stack
// trace -- used at the dispatch boundary when a handler fails with an
// error that is not a *LangError, so it still escapes as a typed error
// (spec S7 ContextFail: "internal invariant breach").
func Wrap(cause error, message string) *LangError {
	return &LangError{Kind: ContextFail, Message: message, cause: errors.Wrap(cause, message)}
}

// Cause returns the wrapped cause, if any, via pkg/errors' Cause so a
// caller can walk a chain of wrapped LangErrors down to the root fault.
func (e *LangError) Cause() error {
	if e.cause != nil {
		return errors.Cause(e.cause)
	}
	return nil
}

// WithLocation attaches a source location, returning e for chaining.
func (e *LangError) WithLocation(loc Location) *LangError {
	e.Location = loc
	return e
}

// WithSource attaches the offending source line for display.
func (e *LangError) WithSource(source string) *LangError {
	e.Source = source
	return e
}

// WithCallStack attaches the call-frame chain active at failure time.
func (e *LangError) WithCallStack(stack []Frame) *LangError {
	e.CallStack = stack
	return e
}

// Error implements the error interface, rendering type, message, location,
// source context, and call stack the way the donor's SentraError.Error
// does.
func (e *LangError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Kind, e.Message))

	if e.Location.File != "" || e.Location.Line != 0 {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString(strings.Repeat(" ", len(fmt.Sprintf("  %d | ", e.Location.Line))))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, f := range e.CallStack {
			if f.Function != "" {
				sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n", f.Function, f.Location.File, f.Location.Line, f.Location.Column))
			} else {
				sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", f.Location.File, f.Location.Line, f.Location.Column))
			}
		}
	}

	return sb.String()
}

// As reports whether err is (or wraps) a *LangError of the given Kind --
// a small convenience for callers (notably the REPL and tests) that only
// care about the taxonomy, not the full diagnostic.
func As(err error, kind Kind) bool {
	var le *LangError
	return stderrors.As(err, &le) && le.Kind == kind
}
