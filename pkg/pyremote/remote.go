// Package pyremote carries the debugger's stdin command grammar over a
// single WebSocket connection instead, gated by a bearer token checked in
// constant time. Only one connection is ever accepted: a remote driver is
// an alternate command source, never a second concurrent one, preserving
// the single-logical-task execution model.
package pyremote

import (
	"crypto/subtle"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ssarangi/pyvym/pkg/pydebug"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Token is the bearer token remote-attach connections must present. An
// empty Token disables the check -- acceptable only for local,
// loopback-only debugging sessions.
var Token = os.Getenv("PYVYM_REMOTE_TOKEN")

func authorized(r *http.Request) bool {
	if Token == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(Token)) == 1
}

// wsWriter adapts a *websocket.Conn to io.Writer, one text message per
// Write call.
type wsWriter struct{ conn *websocket.Conn }

func (w wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Serve listens on addr and handles only the first request to /attach. An
// authorized request is upgraded to a WebSocket and the debugger's command
// loop runs over it; an unauthorized one is refused with 401 and Serve
// returns an error without waiting for another connection.
func Serve(addr string, dbg *pydebug.Debugger) error {
	accepted := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/attach", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			accepted <- http.ErrServerClosed
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			accepted <- err
			return
		}
		defer conn.Close()
		dbg.SetOut(wsWriter{conn: conn})
		accepted <- runOverSocket(conn, dbg)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	defer srv.Close()
	return <-accepted
}

func runOverSocket(conn *websocket.Conn, dbg *pydebug.Debugger) error {
	return dbg.REPL(connReader(conn), ">>> ")
}

// connReader adapts a WebSocket connection's incoming text messages into
// an io.Reader the Debugger's bufio-based REPL can read lines from.
func connReader(conn *websocket.Conn) io.Reader {
	r, w := io.Pipe()
	go func() {
		defer w.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if _, err := w.Write(append(msg, '\n')); err != nil {
				return
			}
		}
	}()
	return r
}
