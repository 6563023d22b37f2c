// Package repl implements the interactive loop of spec.md S6: read a line,
// lex and parse it against one persistent Scope, evaluate it, and print
// any error; the stack itself is printed only on request (stack_dump,
// print). Grounded on the donor's repl.go (bufio.Scanner over
// stdin, one VM reused across lines) but replacing its per-line
// fresh-compiler-and-chunk reset with this language's persistent
// Scope/SpanTable/Evaluator, since here a line can define registers and
// symbols that later lines must still see (spec S6 "same Scope").
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"stacklang/internal/diagnostics"
	langerrors "stacklang/internal/errors"
	"stacklang/internal/lexer"
	"stacklang/internal/parser"
	"stacklang/internal/sessionstore"
	"stacklang/internal/vm"
)

const prompt = ">> "

// Config controls an interactive session's optional extras.
type Config struct {
	In       io.Reader
	Out      io.Writer
	History  *sessionstore.Store // nil disables history recording
	Log      *diagnostics.Logger // nil disables diagnostic logging
	Filename string              // used only in span diagnostics, e.g. "<repl>"
}

// Run drives one interactive session until EOF or the literal line "halt"
// (spec S6). It owns the Scope and SpanTable for the session's whole
// lifetime, so definitions and register bindings from one line are visible
// to every line after it.
func Run(cfg Config) error {
	if cfg.Filename == "" {
		cfg.Filename = "<repl>"
	}
	sessionID := uuid.NewString()
	scope := vm.NewScope(sessionID)
	scope.Out = cfg.Out
	spans := vm.NewSpanTable()
	eval := vm.NewEvaluator(scope, spans)

	log := cfg.Log
	if log == nil {
		log = diagnostics.New(io.Discard, sessionID)
	}
	log.Info("repl session started")

	in := bufio.NewScanner(cfg.In)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seq := 0
	for {
		fmt.Fprint(cfg.Out, prompt)
		if !in.Scan() {
			break
		}
		line := in.Text()
		if strings.TrimSpace(line) == "halt" {
			break
		}
		seq++
		result, errKind := evalLine(eval, spans, scope, cfg.Filename, line)
		if errKind != "" {
			log.Error("line %d: %s", seq, errKind)
		}
		if cfg.History != nil {
			if err := cfg.History.Record(sessionID, seq, line, result, errKind); err != nil {
				log.Warn("history record failed: %v", err)
			}
		}
	}
	log.Info("repl session ended")
	return in.Err()
}

// evalLine lexes, parses and evaluates one line against the session's
// persistent scope, returning a rendered result (top-of-stack, or empty on
// error/empty stack) and an error-kind string (empty on success).
func evalLine(eval *vm.Evaluator, spans *vm.SpanTable, scope *vm.Scope, file, line string) (result, errKind string) {
	scanner := lexer.NewScanner(line, file)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		fmt.Fprintln(scope.Out, err)
		return "", kindOf(err)
	}

	p := parser.NewParser(tokens, file, spans, scope)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintln(scope.Out, err)
		return "", kindOf(err)
	}

	if err := eval.Run(prog); err != nil {
		fmt.Fprintln(scope.Out, err)
		return "", kindOf(err)
	}

	if len(scope.Stack) == 0 {
		return "", ""
	}
	top := scope.Stack[len(scope.Stack)-1]
	return top.AsString(), ""
}

// kindOf extracts the taxonomy Kind from a *langerrors.LangError, falling
// back to a generic label for anything else that escaped the lexer,
// parser or evaluator.
func kindOf(err error) string {
	if le, ok := err.(*langerrors.LangError); ok {
		return string(le.Kind)
	}
	return "Runtime"
}
