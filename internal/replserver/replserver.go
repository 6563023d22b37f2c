// Package replserver exposes the REPL over WebSocket (SPEC_FULL S4.11):
// one HTTP upgrade endpoint, one fresh Scope per accepted connection, each
// line read from the socket evaluated the same way repl.Run evaluates a
// line from stdin. Grounded on the donor's internal/network
// WebSocketServer/WebSocketConn shape (gorilla/websocket Upgrader held on
// a server struct, one goroutine per accepted connection reading text
// frames into a per-connection loop), narrowed from the donor's
// scripting-accessible multi-server registry down to the one fixed
// endpoint this spec needs, and tagging each connection with a
// github.com/google/uuid session ID the way the donor's WebSocketConn
// tags connections with a generated string ID.
package replserver

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stacklang/internal/diagnostics"
	langerrors "stacklang/internal/errors"
	"stacklang/internal/lexer"
	"stacklang/internal/parser"
	"stacklang/internal/sessionstore"
	"stacklang/internal/vm"
)

// Server hosts the network REPL over a single HTTP(S) endpoint.
type Server struct {
	History  *sessionstore.Store
	Log      *diagnostics.Logger
	upgrader websocket.Upgrader
}

// New builds a Server. A nil History disables history recording; a nil
// Log discards diagnostics.
func New(history *sessionstore.Store, log *diagnostics.Logger) *Server {
	if log == nil {
		log = diagnostics.New(io.Discard, "replserver")
	}
	return &Server{
		History: history,
		Log:     log,
		upgrader: websocket.Upgrader{
			// Allow all origins: this is a developer tool, not a
			// browser-facing production service (mirrors the donor's
			// own CheckOrigin: always-true WebSocketListen default).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs one
// REPL session on it until the client disconnects or sends "halt".
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.Log.WithSession(sessionID)
	log.Info("connection accepted from %s", r.RemoteAddr)

	scope := vm.NewScope(sessionID)
	scope.Out = &connWriter{conn: conn}
	spans := vm.NewSpanTable()
	eval := vm.NewEvaluator(scope, spans)

	seq := 0
	for {
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("connection closed: %v", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		line := string(data)
		if strings.TrimSpace(line) == "halt" {
			conn.WriteMessage(websocket.TextMessage, []byte("bye"))
			return
		}

		seq++
		result, errKind := evalLine(eval, spans, scope, "<net>", line)
		if errKind != "" {
			log.Error("line %d: %s", seq, errKind)
		}
		if s.History != nil {
			if err := s.History.Record(sessionID, seq, line, result, errKind); err != nil {
				log.Warn("history record failed: %v", err)
			}
		}
	}
}

func evalLine(eval *vm.Evaluator, spans *vm.SpanTable, scope *vm.Scope, file, line string) (result, errKind string) {
	scanner := lexer.NewScanner(line, file)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		writeErr(scope, err)
		return "", kindOf(err)
	}

	p := parser.NewParser(tokens, file, spans, scope)
	prog, err := p.Parse()
	if err != nil {
		writeErr(scope, err)
		return "", kindOf(err)
	}

	if err := eval.Run(prog); err != nil {
		writeErr(scope, err)
		return "", kindOf(err)
	}

	if len(scope.Stack) == 0 {
		return "", ""
	}
	top := scope.Stack[len(scope.Stack)-1]
	result = top.AsString()
	scope.Out.Write([]byte(result + "\n"))
	return result, ""
}

func writeErr(scope *vm.Scope, err error) {
	scope.Out.Write([]byte(err.Error() + "\n"))
}

func kindOf(err error) string {
	if le, ok := err.(*langerrors.LangError); ok {
		return string(le.Kind)
	}
	return "Runtime"
}

// connWriter adapts a *websocket.Conn to io.Writer, sending each Write as
// one text frame -- the Scope's Out sink for print/stack_dump/sym_dump.
type connWriter struct {
	conn *websocket.Conn
}

func (w *connWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
