// Command pyvym loads a bytecode Code Object and either runs it directly
// or attaches the interactive source-level debugger.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssarangi/pyvym/pkg/pyconfig"
	"github.com/ssarangi/pyvym/pkg/pydebug"
	"github.com/ssarangi/pyvym/pkg/pyhistory"
	"github.com/ssarangi/pyvym/pkg/pylog"
	"github.com/ssarangi/pyvym/pkg/pymetrics"
	"github.com/ssarangi/pyvym/pkg/pyremote"
	"github.com/ssarangi/pyvym/pkg/pysession"
	"github.com/ssarangi/pyvym/pkg/pysnapshot"
	"github.com/ssarangi/pyvym/pkg/pytrace"
	"github.com/ssarangi/pyvym/pkg/pyvm"
	"github.com/ssarangi/pyvym/pkg/pywatch"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
)

func main() {
	root := &cobra.Command{
		Use:   "pyvym",
		Short: "A stack-based bytecode interpreter and source-level debugger",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newDebugCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newInspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var metricsAddr, otlpAddr string
	var trace bool

	cmd := &cobra.Command{
		Use:   "run <program.yaml>",
		Short: "Run a Code Object to completion without attaching the debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := pyconfig.LoadCodeObject(args[0])
			if err != nil {
				return err
			}
			logger := pylog.New(os.Stderr, pylog.LevelInfo, pylog.FormatText, "")
			interp := pyvm.NewInterpreter(code)

			var cleanups []func()
			runCleanups := func() {
				for _, c := range cleanups {
					c()
				}
			}

			if metricsAddr != "" {
				collector := pymetrics.New()
				interp.Metrics = collector
				cleanups = append(cleanups, collector.Serve(metricsAddr))
			}
			if otlpAddr != "" {
				tracer, shutdown, err := pytrace.NewOTLP(cmd.Context(), otlpAddr)
				if err != nil {
					runCleanups()
					return err
				}
				interp.Tracer = tracer
				cleanups = append(cleanups, shutdown)
			} else if trace {
				tracer, shutdown, err := pytrace.New(cmd.Context())
				if err != nil {
					runCleanups()
					return err
				}
				interp.Tracer = tracer
				cleanups = append(cleanups, shutdown)
			}

			logger.Info("run started", map[string]string{"file": args[0]})
			if err := interp.Run(); err != nil {
				logger.Error("run failed", map[string]string{"error": err.Error()})
				errorColor.Fprintf(os.Stderr, "run failed: %v\n", err)
				runCleanups()
				return err
			}
			successColor.Fprintln(os.Stdout, textOf(interp.ReturnValue))
			runCleanups()
			os.Exit(exitCode(interp.ReturnValue))
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&trace, "trace", false, "emit OpenTelemetry spans for calls and class construction")
	cmd.Flags().StringVar(&otlpAddr, "otlp-addr", "", "ship spans to this OTLP/gRPC collector instead of stdout (e.g. localhost:4317)")
	return cmd
}

func newDebugCmd() *cobra.Command {
	var session, redisAddr, historyDSN, snapshotURI, listen, metricsAddr, otlpAddr string
	var watch, trace bool

	cmd := &cobra.Command{
		Use:   "debug <program.yaml>",
		Short: "Attach the interactive source-level debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			code, err := pyconfig.LoadCodeObject(path)
			if err != nil {
				return err
			}

			store, err := pysession.Open(redisAddr)
			if err != nil {
				return err
			}
			sessionID := session
			if sessionID == "" {
				sessionID = pysession.NewID()
			}

			dbg := pydebug.New(code, os.Stdout)
			if metricsAddr != "" {
				collector := pymetrics.New()
				dbg.SetMetrics(collector)
				stop := collector.Serve(metricsAddr)
				defer stop()
			}
			if otlpAddr != "" {
				tracer, shutdown, err := pytrace.NewOTLP(cmd.Context(), otlpAddr)
				if err != nil {
					return err
				}
				dbg.SetTracer(tracer)
				defer shutdown()
			} else if trace {
				tracer, shutdown, err := pytrace.New(cmd.Context())
				if err != nil {
					return err
				}
				dbg.SetTracer(tracer)
				defer shutdown()
			}
			if saved, ok := store.Load(sessionID); ok {
				for _, bp := range saved.Breakpoints {
					dbg.SetBreakpoint(bp)
				}
			}

			var history *pyhistory.Store
			if historyDSN != "" {
				history, err = pyhistory.Open(historyDSN)
				if err != nil {
					return err
				}
				defer history.Close()
			}
			var snapshots *pysnapshot.Store
			if snapshotURI != "" {
				snapshots, err = pysnapshot.Connect(cmd.Context(), snapshotURI)
				if err != nil {
					return err
				}
				defer snapshots.Close(cmd.Context())
			}

			dbg.OnBreakpointHit = func(line, hitCount int) {
				infoColor.Fprintf(os.Stdout, "[hit #%d] line %d\n", hitCount, line)
				now := time.Now()
				if history != nil {
					if err := history.Record(cmd.Context(), sessionID, line, hitCount, now); err != nil {
						fmt.Fprintf(os.Stderr, "recording history: %v\n", err)
					}
				}
				if snapshots != nil {
					doc := pysnapshot.Doc{
						SessionID: sessionID,
						Line:      line,
						Backtrace: dbg.Backtrace(),
						Locals:    dbg.LocalsSnapshot(),
						Globals:   dbg.GlobalsSnapshot(),
						HitAt:     now,
					}
					if err := snapshots.Record(cmd.Context(), doc); err != nil {
						fmt.Fprintf(os.Stderr, "recording snapshot: %v\n", err)
					}
				}
			}

			if history != nil {
				dbg.OnNext = func(line int) {
					if err := history.Record(cmd.Context(), sessionID, line, 0, time.Now()); err != nil {
						fmt.Fprintf(os.Stderr, "recording history: %v\n", err)
					}
				}
			}

			runLoop := func() error {
				if listen != "" {
					return pyremote.Serve(listen, dbg)
				}
				return dbg.REPL(os.Stdin, ">>> ")
			}

			if watch {
				return pywatch.Run(path, func() error {
					return runLoop()
				})
			}

			err = runLoop()
			store.Save(sessionID, pysession.Snapshot{Breakpoints: dbg.BreakpointLines()})
			return err
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "named session whose breakpoints persist across invocations")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address backing --session (in-memory if empty)")
	cmd.Flags().StringVar(&historyDSN, "history-dsn", "", "SQL DSN (sqlite://, postgres://, mysql://) recording breakpoint hits")
	cmd.Flags().StringVar(&snapshotURI, "snapshot-uri", "", "MongoDB URI recording deep per-hit snapshots")
	cmd.Flags().StringVar(&listen, "listen", "", "accept one remote-attach WebSocket connection on this address instead of stdin")
	cmd.Flags().BoolVar(&watch, "watch", false, "restart the session on the same loaded program when the program file changes (the file is not reloaded)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&trace, "trace", false, "emit OpenTelemetry spans for calls and class construction")
	cmd.Flags().StringVar(&otlpAddr, "otlp-addr", "", "ship spans to this OTLP/gRPC collector instead of stdout (e.g. localhost:4317)")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <program.yaml>",
		Short: "Print the decoded opcode stream for diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := pyconfig.LoadCodeObject(args[0])
			if err != nil {
				return err
			}
			Disassemble(os.Stdout, code)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var session, dsn string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Replay recorded breakpoint/step hits for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := pyhistory.Open(dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			rows, err := store.Replay(cmd.Context(), session)
			if err != nil {
				return err
			}
			for _, row := range rows {
				fmt.Printf("%s line=%d hits=%d at %s\n", row.SessionID, row.Line, row.HitCount, row.Timestamp)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session to replay")
	cmd.Flags().StringVar(&dsn, "dsn", "", "SQL DSN the history was recorded to")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var session, uri string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Replay deep per-hit snapshots (backtrace + locals/globals) for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := pysnapshot.Connect(cmd.Context(), uri)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())
			docs, err := store.Replay(cmd.Context(), session)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				fmt.Printf("%s line=%d at %s\n  backtrace: %s\n  locals: %v\n  globals: %v\n",
					doc.SessionID, doc.Line, doc.HitAt, strings.Join(doc.Backtrace, " -> "), doc.Locals, doc.Globals)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session to replay")
	cmd.Flags().StringVar(&uri, "uri", "", "MongoDB URI the snapshots were recorded to")
	return cmd
}

func textOf(v pyvm.Value) string {
	if v == nil {
		return "None"
	}
	return v.Text()
}

// exitCode maps a program's return value to the process exit status: an
// IntValue's own value, truncated to the low 8 bits as every OS exit code
// is, or 0 for anything else (None, a string, a list, ...).
func exitCode(v pyvm.Value) int {
	iv, ok := v.(pyvm.IntValue)
	if !ok {
		return 0
	}
	return int(iv.Val) & 0xFF
}
