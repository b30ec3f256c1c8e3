// Package pydebug implements the interactive source-level debugger: a
// breakpoint table, a command parser for the fixed grammar, and the
// run/next loop that steps the interpreter between source lines.
package pydebug

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ssarangi/pyvym/pkg/pycache"
	"github.com/ssarangi/pyvym/pkg/pyerrors"
	"github.com/ssarangi/pyvym/pkg/pyvm"
)

// Breakpoint tracks one source line's enabled/disabled state and how many
// times execution has stopped there.
type Breakpoint struct {
	Line    int
	Enabled bool
	Hits    int
}

// Debugger wraps an Interpreter with breakpoints and the command grammar.
// It owns the Code Object so it can rebuild the Interpreter from scratch
// for deterministic re-entry after the program terminates.
type Debugger struct {
	code    *pyvm.CodeObject
	interp  *pyvm.Interpreter
	lineMap *pyvm.LineMap

	breakpoints map[int]*Breakpoint
	lastHitLine int
	running     bool
	lineCache   *pycache.LineCache

	Out     io.Writer
	metrics pyvm.MetricsHook
	tracer  pyvm.TraceHook

	// OnBreakpointHit, when set, is called with the line and total hit
	// count every time RunVM stops at a breakpoint -- the hook a caller
	// wires to pkg/pyhistory and pkg/pysnapshot rather than the Debugger
	// depending on either storage package directly.
	OnBreakpointHit func(line, hitCount int)

	// OnNext, when set, is called with the new line every time NextInst
	// completes a source-level step onto a different line. Unlike
	// OnBreakpointHit it carries no hit count of its own (a step isn't
	// tied to a Breakpoint's counter) -- callers recording it alongside
	// breakpoint hits use 0.
	OnNext func(line int)
}

// New creates a Debugger over code, performing the same initialization
// the VM itself does on every reset.
func New(code *pyvm.CodeObject, out io.Writer) *Debugger {
	d := &Debugger{
		code:        code,
		breakpoints: make(map[int]*Breakpoint),
		Out:         out,
	}
	d.initializeVM()
	return d
}

func (d *Debugger) initializeVM() {
	d.interp = pyvm.NewInterpreter(d.code)
	if d.Out != nil {
		d.interp.SetStdout(d.Out)
	}
	d.interp.Metrics = d.metrics
	d.interp.Tracer = d.tracer
	d.lineMap = d.code.NewLineMap()
	d.lineCache = pycache.NewLineCache(512)
	d.lastHitLine = pyvm.InvalidLine
}

// currentLine is CurrentLine memoized per instruction pointer, since the
// debugger re-derives it on every single step.
func (d *Debugger) currentLine() int {
	f := d.interp.CurrentFrame()
	if f == nil {
		return pyvm.InvalidLine
	}
	return d.lineCache.Lookup(d.lineMap.LineNumber, f.GetIP())
}

// SetOut redirects where the debugger writes prompts and command output,
// and where the program's print writes -- used by the remote-attach
// listener to route them over a WebSocket connection instead of stdout.
func (d *Debugger) SetOut(w io.Writer) {
	d.Out = w
	d.interp.SetStdout(w)
}

// SetMetrics wires an optional dispatch/call/breakpoint collector into
// the underlying interpreter, surviving the reset RunVM performs on
// every termination.
func (d *Debugger) SetMetrics(m pyvm.MetricsHook) {
	d.metrics = m
	d.interp.Metrics = m
}

// SetTracer wires an optional call/class-construction span tracer into
// the underlying interpreter, surviving the reset RunVM performs on
// every termination.
func (d *Debugger) SetTracer(t pyvm.TraceHook) {
	d.tracer = t
	d.interp.Tracer = t
}

func (d *Debugger) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.Out, format, args...)
}

// SetBreakpoint enables a breakpoint at line, creating it if necessary.
func (d *Debugger) SetBreakpoint(line int) {
	if bp, ok := d.breakpoints[line]; ok {
		bp.Enabled = true
		return
	}
	d.breakpoints[line] = &Breakpoint{Line: line, Enabled: true}
}

// DisableBreakpoint turns off a breakpoint without forgetting its hit count.
func (d *Debugger) DisableBreakpoint(line int) {
	if bp, ok := d.breakpoints[line]; ok {
		bp.Enabled = false
	}
}

// ClearBreakpoint removes a breakpoint entirely.
func (d *Debugger) ClearBreakpoint(line int) {
	delete(d.breakpoints, line)
}

// BreakpointLines returns every currently-set breakpoint's line number,
// for persistence by a caller-supplied session store.
func (d *Debugger) BreakpointLines() []int {
	lines := make([]int, 0, len(d.breakpoints))
	for l := range d.breakpoints {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// ClearAllBreakpoints removes every breakpoint.
func (d *Debugger) ClearAllBreakpoints() {
	d.breakpoints = make(map[int]*Breakpoint)
}

func (d *Debugger) shouldBreak(line int) bool {
	bp, ok := d.breakpoints[line]
	return ok && bp.Enabled
}

// RunVM executes until a breakpoint is hit or the program terminates. A
// breakpoint only fires on entry to a NEW source line -- contiguous
// instructions on the same line never re-trigger it -- and re-initializes
// the VM whenever the program terminates, normally or with an error, so
// the next "run" starts from a clean slate.
func (d *Debugger) RunVM() error {
	d.running = true
	for {
		line := d.currentLine()
		if line != d.lastHitLine && d.shouldBreak(line) {
			d.breakpoints[line].Hits++
			d.lastHitLine = line
			d.printf("Breakpoint hit at line %d\n", line)
			d.printSurrounding(line)
			if d.interp.Metrics != nil {
				d.interp.Metrics.BreakpointHit(line)
			}
			if d.OnBreakpointHit != nil {
				d.OnBreakpointHit(line, d.breakpoints[line].Hits)
			}
			d.running = false
			return nil
		}
		d.lastHitLine = line
		done, err := d.interp.Step()
		if err != nil {
			d.printf("Program terminated with error: %v\n", err)
			d.initializeVM()
			d.running = false
			return nil
		}
		if done {
			d.printf("Program exited normally with value %s\n", textOf(d.interp.ReturnValue))
			d.initializeVM()
			d.running = false
			return nil
		}
	}
}

// NextInst single-steps until the current source line changes (or the
// program terminates), i.e. one whole source-level "next", not one
// opcode.
func (d *Debugger) NextInst() error {
	startLine := d.currentLine()
	for {
		done, err := d.interp.Step()
		if err != nil {
			d.printf("Program terminated with error: %v\n", err)
			d.initializeVM()
			return nil
		}
		if done {
			d.printf("Program exited normally with value %s\n", textOf(d.interp.ReturnValue))
			d.initializeVM()
			return nil
		}
		line := d.currentLine()
		if line != startLine {
			d.lastHitLine = line
			d.printSurrounding(line)
			if d.OnNext != nil {
				d.OnNext(line)
			}
			return nil
		}
	}
}

func (d *Debugger) printSurrounding(line int) {
	d.printf("%s", d.lineMap.SourceSurrounding(line, 5))
}

func textOf(v pyvm.Value) string {
	if v == nil {
		return "None"
	}
	return v.Text()
}

// ViewSource prints the whole source (line == 0) or a window around line.
func (d *Debugger) ViewSource(line int) {
	if line == 0 {
		d.printf("%s", d.lineMap.AllSourceLines())
		return
	}
	d.printSurrounding(line)
}

// ViewLocals prints every local visible in the current frame, or a single
// named one when filter is non-empty.
func (d *Debugger) ViewLocals(filter string) {
	f := d.interp.CurrentFrame()
	if f == nil {
		d.printf("<no active frame>\n")
		return
	}
	names := f.LocalNames()
	sort.Strings(names)
	for _, name := range names {
		if filter != "" && name != filter {
			continue
		}
		v, _ := f.GetLocal(name)
		d.printf("%s = %s\n", name, textOf(v))
	}
}

// ViewGlobals prints every global, or a single named one when filter is
// non-empty.
func (d *Debugger) ViewGlobals(filter string) {
	for name, v := range d.interp.Module.Globals {
		if filter != "" && name != filter {
			continue
		}
		d.printf("%s = %s\n", name, textOf(v))
	}
}

// SetLocal assigns raw text into an existing local, coercing it to that
// local's current dynamic type when possible and falling back to a plain
// string when the coercion fails -- the same best-effort rule the
// original debugger used for "set local V X".
func (d *Debugger) SetLocal(name, raw string) error {
	f := d.interp.CurrentFrame()
	if f == nil {
		return &pyerrors.CommandError{Input: raw, Message: "no active frame"}
	}
	current, ok := f.GetLocal(name)
	if !ok {
		return &pyerrors.NameError{Name: name, Global: false, Suggestion: pyerrors.Suggest(name, f.LocalNames())}
	}
	f.SetLocal(name, coerce(current, raw))
	return nil
}

func coerce(current pyvm.Value, raw string) pyvm.Value {
	switch current.(type) {
	case pyvm.IntValue:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return pyvm.IntValue{Val: n}
		}
	case pyvm.FloatValue:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return pyvm.FloatValue{Val: n}
		}
	case pyvm.BoolValue:
		if b, err := strconv.ParseBool(raw); err == nil {
			return pyvm.BoolValue{Val: b}
		}
	}
	return pyvm.StringValue{Val: raw}
}

// ViewBacktrace prints every call frame, root (module) frame first.
func (d *Debugger) ViewBacktrace() {
	frames := d.interp.Frames.Backtrace()
	for idx := len(frames) - 1; idx >= 0; idx-- {
		d.printf("<Frame %s>\n", frames[idx].Name)
	}
}

// Backtrace returns every call frame's name, root (module) frame first --
// the same data ViewBacktrace prints, structured for a caller that wants
// to persist it rather than display it.
func (d *Debugger) Backtrace() []string {
	frames := d.interp.Frames.Backtrace()
	out := make([]string, 0, len(frames))
	for idx := len(frames) - 1; idx >= 0; idx-- {
		out = append(out, frames[idx].Name)
	}
	return out
}

// LocalsSnapshot returns every local visible in the current frame as
// text, for persistence by a caller-supplied snapshot store.
func (d *Debugger) LocalsSnapshot() map[string]string {
	f := d.interp.CurrentFrame()
	if f == nil {
		return nil
	}
	out := make(map[string]string)
	for _, name := range f.LocalNames() {
		v, _ := f.GetLocal(name)
		out[name] = textOf(v)
	}
	return out
}

// GlobalsSnapshot returns every module global as text, for persistence
// by a caller-supplied snapshot store.
func (d *Debugger) GlobalsSnapshot() map[string]string {
	out := make(map[string]string)
	for name, v := range d.interp.Module.Globals {
		out[name] = textOf(v)
	}
	return out
}

// ViewBreakpoints lists every breakpoint, sorted by line.
func (d *Debugger) ViewBreakpoints() {
	lines := make([]int, 0, len(d.breakpoints))
	for l := range d.breakpoints {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	for _, l := range lines {
		bp := d.breakpoints[l]
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		d.printf("line %d: %s (%d hits)\n", bp.Line, state, bp.Hits)
	}
}

// DisplayHelp prints the command grammar this Debugger accepts.
func (d *Debugger) DisplayHelp() {
	d.printf(strings.TrimLeft(`
next | run | quit | help
set bp L | disable bp L | clear bp L | clear all bps
view source [L] | view locals | view globals
view local V | view global V | set local V X
view backtrace | view bp
`, "\n"))
}

// Quit stops the debugger; the caller's command loop should exit after
// this returns.
func (d *Debugger) Quit() {}
