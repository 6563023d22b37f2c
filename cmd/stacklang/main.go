// Command stacklang is the CLI entrypoint (spec S6): an interactive REPL,
// batch execution of a source file, and a network REPL server. Grounded
// on the donor's cmd/sentra/main.go (os.Args[1:] dispatch switch, a
// command-alias map, --version/--help handled first) but trimmed down to
// the commands this spec actually needs -- no build/test/lint/lsp/package
// manager surface, since none of that is part of this language (see
// DESIGN.md for the full list of donor commands dropped and why).
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"stacklang/internal/diagnostics"
	langerrors "stacklang/internal/errors"
	"stacklang/internal/lexer"
	"stacklang/internal/parser"
	"stacklang/internal/repl"
	"stacklang/internal/replserver"
	"stacklang/internal/sessionstore"
	"stacklang/internal/vm"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"s": "serve",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("stacklang", version)
	case "repl":
		cmdRepl(rest)
	case "run":
		cmdRun(rest)
	case "serve":
		cmdServe(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: stacklang <command> [arguments]

commands:
  repl [--history PATH]       start an interactive session
  run [--history PATH] FILE   evaluate a source file and exit
  serve --addr ADDR [--history PATH]
                               serve the REPL over WebSocket
  version                     print the version`)
}

func openHistory(path string) *sessionstore.Store {
	if path == "" {
		return nil
	}
	store, err := sessionstore.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stacklang: history: %v\n", err)
		os.Exit(1)
	}
	return store
}

func cmdRepl(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	historyPath := fs.String("history", "", "path to a SQLite file recording this session's lines")
	fs.Parse(args)

	history := openHistory(*historyPath)
	if history != nil {
		defer history.Close()
	}

	err := repl.Run(repl.Config{
		In:      os.Stdin,
		Out:     os.Stdout,
		History: history,
		Log:     diagnostics.New(os.Stderr, "repl"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	historyPath := fs.String("history", "", "path to a SQLite file recording this run")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: stacklang run FILE")
		os.Exit(1)
	}
	path := fs.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	history := openHistory(*historyPath)
	if history != nil {
		defer history.Close()
	}

	scanner := lexer.NewScanner(string(source), path)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		recordBatchResult(history, path, "", err)
		os.Exit(1)
	}

	spans := vm.NewSpanTable()
	scope := vm.NewScope(path)
	p := parser.NewParser(tokens, path, spans, scope)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		recordBatchResult(history, path, "", err)
		os.Exit(1)
	}

	eval := vm.NewEvaluator(scope, spans)
	if err := eval.Run(prog); err != nil {
		fmt.Fprintln(os.Stderr, err)
		recordBatchResult(history, path, "", err)
		os.Exit(1)
	}

	var result string
	if n := len(scope.Stack); n > 0 {
		result = scope.Stack[n-1].AsString()
		fmt.Fprintln(os.Stdout, result)
	}
	recordBatchResult(history, path, result, nil)
}

func recordBatchResult(history *sessionstore.Store, path, result string, runErr error) {
	if history == nil {
		return
	}
	errKind := ""
	if le, ok := runErr.(*langerrors.LangError); ok {
		errKind = string(le.Kind)
	} else if runErr != nil {
		errKind = "Runtime"
	}
	if err := history.Record(path, 1, path, result, errKind); err != nil {
		fmt.Fprintln(os.Stderr, "stacklang: history:", err)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":4747", "address to listen on")
	historyPath := fs.String("history", "", "path to a SQLite file recording every session's lines")
	fs.Parse(args)

	history := openHistory(*historyPath)
	if history != nil {
		defer history.Close()
	}

	srv := replserver.New(history, diagnostics.New(os.Stderr, "replserver"))
	fmt.Fprintf(os.Stdout, "stacklang: serving REPL on %s\n", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
