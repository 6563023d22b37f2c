package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestLangErrorRendersKindAndMessage(t *testing.T) {
	err := New(Runtime, "stack underflow")
	if !strings.Contains(err.Error(), "Runtime") {
		t.Fatalf("got %q, want it to mention the Kind", err.Error())
	}
	if !strings.Contains(err.Error(), "stack underflow") {
		t.Fatalf("got %q, want it to mention the message", err.Error())
	}
}

func TestLangErrorWithLocationRendersPosition(t *testing.T) {
	err := New(Syntax, "unexpected token").WithLocation(Location{File: "a.sl", Line: 3, Column: 5})
	rendered := err.Error()
	if !strings.Contains(rendered, "a.sl:3:5") {
		t.Fatalf("got %q, want a location line", rendered)
	}
}

func TestLangErrorCallStackRenders(t *testing.T) {
	err := New(Runtime, "boom").WithCallStack([]Frame{
		{Location: Location{File: "a.sl", Line: 1, Column: 1}},
		{Function: "double", Location: Location{File: "a.sl", Line: 2, Column: 1}},
	})
	rendered := err.Error()
	if !strings.Contains(rendered, "Call Stack:") {
		t.Fatalf("got %q, want a call stack section", rendered)
	}
	if !strings.Contains(rendered, "double") {
		t.Fatalf("got %q, want the named frame to render its function", rendered)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	root := errors.New("root cause")
	wrapped := Wrap(root, "context")
	if wrapped.Kind != ContextFail {
		t.Fatalf("Wrap should produce a ContextFail, got %s", wrapped.Kind)
	}
	if wrapped.Cause() == nil {
		t.Fatal("Cause() should return the wrapped root error")
	}
}

func TestAsMatchesKind(t *testing.T) {
	err := New(UndefinedSymbol, "no such symbol")
	if !As(err, UndefinedSymbol) {
		t.Fatal("As should match the error's own Kind")
	}
	if As(err, Runtime) {
		t.Fatal("As should not match a different Kind")
	}
	if As(errors.New("plain"), Runtime) {
		t.Fatal("As should reject a non-LangError")
	}
}
