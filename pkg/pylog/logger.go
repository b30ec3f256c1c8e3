// Package pylog provides the structured, leveled logger that the pyvym
// CLI's run subcommand writes through. It deliberately avoids a third-party
// logging framework in favour of this small hand-rolled type, matching the
// rest of the ambient stack's preference for explicit, dependency-light
// cross-cutting concerns. The interpreter, the debugger and the storage
// packages do not log through it.
package pylog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Entry is one emitted log record.
type Entry struct {
	Time      time.Time         `json:"time"`
	Level     string            `json:"level"`
	SessionID string            `json:"session_id,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger writes leveled entries, each carrying the session's correlation ID.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	format    Format
	sessionID string
}

// New creates a Logger. If sessionID is empty, a fresh one is minted so
// every run's log lines can be correlated even without an explicit
// --session flag.
func New(out io.Writer, level Level, format Format, sessionID string) *Logger {
	if out == nil {
		out = os.Stderr
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Logger{out: out, level: level, format: format, sessionID: sessionID}
}

func (l *Logger) SessionID() string { return l.sessionID }

func (l *Logger) log(level Level, msg string, fields map[string]string) {
	if level < l.level {
		return
	}
	e := Entry{Time: time.Now(), Level: level.String(), SessionID: l.sessionID, Message: msg, Fields: fields}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == FormatJSON {
		b, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(l.out, "ERROR marshaling log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.out, string(b))
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s", e.Time.Format(time.RFC3339), e.Level, e.Message)
	if e.SessionID != "" {
		fmt.Fprintf(l.out, " session=%s", e.SessionID)
	}
	for k, v := range fields {
		fmt.Fprintf(l.out, " %s=%s", k, v)
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, fields map[string]string) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]string)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]string)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]string) { l.log(LevelError, msg, fields) }
