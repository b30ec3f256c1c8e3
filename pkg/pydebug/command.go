package pydebug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

// CommandKind enumerates the fixed grammar in the order the original
// debugger grouped them: control flow, breakpoint management, and view
// commands.
type CommandKind int

const (
	CmdNext CommandKind = iota
	CmdRun
	CmdQuit
	CmdHelp
	CmdSetBP
	CmdDisableBP
	CmdClearBP
	CmdClearAllBP
	CmdViewSource
	CmdViewLocals
	CmdViewGlobals
	CmdViewLocal
	CmdViewGlobal
	CmdSetLocal
	CmdViewBacktrace
	CmdViewBreakpoints
	cmdUnknown
)

// Command is one parsed line of debugger input.
type Command struct {
	Kind CommandKind
	Arg1 string
	Arg2 string
}

var grammar = []string{
	"next", "run", "quit", "help",
	"set bp", "disable bp", "clear bp", "clear all bps",
	"view source", "view locals", "view globals",
	"view local", "view global", "set local",
	"view backtrace", "view bp",
}

// ParseCommand tokenizes one line of input against the fixed grammar.
// Input that doesn't match any grammar form at all comes back as a
// *pyerrors.CommandError with Unrecognized set and a best-effort
// suggestion; REPL discards that case silently. A line that does match a
// verb but has a malformed argument (e.g. "set local" with only one
// field) comes back with Unrecognized left false, and REPL prints it
// inline -- the same split spec.md's "debugger input errors" draws
// between unparseable input and a malformed argument.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return Command{Kind: cmdUnknown}, &pyerrors.CommandError{Input: line, Message: "empty command", Unrecognized: true}
	}

	switch {
	case trimmed == "next":
		return Command{Kind: CmdNext}, nil
	case trimmed == "run":
		return Command{Kind: CmdRun}, nil
	case trimmed == "quit":
		return Command{Kind: CmdQuit}, nil
	case trimmed == "help":
		return Command{Kind: CmdHelp}, nil
	case trimmed == "view locals":
		return Command{Kind: CmdViewLocals}, nil
	case trimmed == "view globals":
		return Command{Kind: CmdViewGlobals}, nil
	case trimmed == "view backtrace":
		return Command{Kind: CmdViewBacktrace}, nil
	case trimmed == "view bp":
		return Command{Kind: CmdViewBreakpoints}, nil
	case trimmed == "clear all bps":
		return Command{Kind: CmdClearAllBP}, nil
	case trimmed == "view source":
		return Command{Kind: CmdViewSource, Arg1: "0"}, nil
	case strings.HasPrefix(trimmed, "set bp "):
		return Command{Kind: CmdSetBP, Arg1: strings.TrimSpace(trimmed[len("set bp "):])}, nil
	case strings.HasPrefix(trimmed, "disable bp "):
		return Command{Kind: CmdDisableBP, Arg1: strings.TrimSpace(trimmed[len("disable bp "):])}, nil
	case strings.HasPrefix(trimmed, "clear bp "):
		return Command{Kind: CmdClearBP, Arg1: strings.TrimSpace(trimmed[len("clear bp "):])}, nil
	case strings.HasPrefix(trimmed, "view source "):
		return Command{Kind: CmdViewSource, Arg1: strings.TrimSpace(trimmed[len("view source "):])}, nil
	case strings.HasPrefix(trimmed, "view local "):
		return Command{Kind: CmdViewLocal, Arg1: strings.TrimSpace(trimmed[len("view local "):])}, nil
	case strings.HasPrefix(trimmed, "view global "):
		return Command{Kind: CmdViewGlobal, Arg1: strings.TrimSpace(trimmed[len("view global "):])}, nil
	case strings.HasPrefix(trimmed, "set local "):
		rest := strings.Fields(trimmed[len("set local "):])
		if len(rest) != 2 {
			return Command{Kind: cmdUnknown}, &pyerrors.CommandError{Input: line, Message: "set local requires a name and a value"}
		}
		return Command{Kind: CmdSetLocal, Arg1: rest[0], Arg2: rest[1]}, nil
	default:
		return Command{Kind: cmdUnknown}, &pyerrors.CommandError{
			Input:        line,
			Message:      "unrecognized command",
			Suggestion:   pyerrors.Suggest(trimmed, grammar),
			Unrecognized: true,
		}
	}
}

// Dispatch runs one parsed command against d, writing any output to
// d.Out. It returns true when the command loop should stop (quit).
func (d *Debugger) Dispatch(cmd Command) (bool, error) {
	switch cmd.Kind {
	case CmdNext:
		return false, d.NextInst()
	case CmdRun:
		return false, d.RunVM()
	case CmdQuit:
		d.Quit()
		return true, nil
	case CmdHelp:
		d.DisplayHelp()
		return false, nil
	case CmdSetBP:
		line, err := strconv.Atoi(cmd.Arg1)
		if err != nil {
			return false, &pyerrors.CommandError{Input: cmd.Arg1, Message: "invalid line number"}
		}
		d.SetBreakpoint(line)
		return false, nil
	case CmdDisableBP:
		line, err := strconv.Atoi(cmd.Arg1)
		if err != nil {
			return false, &pyerrors.CommandError{Input: cmd.Arg1, Message: "invalid line number"}
		}
		d.DisableBreakpoint(line)
		return false, nil
	case CmdClearBP:
		line, err := strconv.Atoi(cmd.Arg1)
		if err != nil {
			return false, &pyerrors.CommandError{Input: cmd.Arg1, Message: "invalid line number"}
		}
		d.ClearBreakpoint(line)
		return false, nil
	case CmdClearAllBP:
		d.ClearAllBreakpoints()
		return false, nil
	case CmdViewSource:
		line, err := strconv.Atoi(cmd.Arg1)
		if err != nil {
			return false, &pyerrors.CommandError{Input: cmd.Arg1, Message: "invalid line number"}
		}
		d.ViewSource(line)
		return false, nil
	case CmdViewLocals:
		d.ViewLocals("")
		return false, nil
	case CmdViewGlobals:
		d.ViewGlobals("")
		return false, nil
	case CmdViewLocal:
		d.ViewLocals(cmd.Arg1)
		return false, nil
	case CmdViewGlobal:
		d.ViewGlobals(cmd.Arg1)
		return false, nil
	case CmdSetLocal:
		return false, d.SetLocal(cmd.Arg1, cmd.Arg2)
	case CmdViewBacktrace:
		d.ViewBacktrace()
		return false, nil
	case CmdViewBreakpoints:
		d.ViewBreakpoints()
		return false, nil
	default:
		return false, &pyerrors.CommandError{Input: "", Message: "unreachable command kind"}
	}
}

// REPL drives the interactive prompt: read a line, parse it, dispatch it,
// print any resulting error inline, and loop until "quit" or EOF. The
// first iteration always runs the program once, matching the original
// debugger's "call_from_vm" auto-run on entry.
//
// Input that matches no grammar form at all is silently ignored, not
// reported -- the original debugger's own parser falls through every
// branch and returns nothing for a line it doesn't recognize. A
// recognized command with a malformed argument (e.g. "set bp abc", or
// "set local" missing its value) still prints an inline notice and
// returns to the prompt.
func (d *Debugger) REPL(in io.Reader, prompt string) error {
	reader := bufio.NewReader(in)
	if err := d.RunVM(); err != nil {
		return err
	}
	for {
		fmt.Fprint(d.Out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil
		}
		cmd, perr := ParseCommand(line)
		if perr != nil {
			var cerr *pyerrors.CommandError
			if errors.As(perr, &cerr) && cerr.Unrecognized {
				continue
			}
			fmt.Fprintln(d.Out, perr)
			continue
		}
		stop, derr := d.Dispatch(cmd)
		if derr != nil {
			fmt.Fprintln(d.Out, derr)
		}
		if stop {
			return nil
		}
	}
}
