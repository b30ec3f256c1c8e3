package pydebug

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

func TestParseCommandFixedGrammar(t *testing.T) {
	cases := []struct {
		line string
		kind CommandKind
		arg1 string
		arg2 string
	}{
		{"next", CmdNext, "", ""},
		{"run", CmdRun, "", ""},
		{"quit", CmdQuit, "", ""},
		{"help", CmdHelp, "", ""},
		{"view locals", CmdViewLocals, "", ""},
		{"view globals", CmdViewGlobals, "", ""},
		{"view backtrace", CmdViewBacktrace, "", ""},
		{"view bp", CmdViewBreakpoints, "", ""},
		{"clear all bps", CmdClearAllBP, "", ""},
		{"view source", CmdViewSource, "0", ""},
		{"set bp 3", CmdSetBP, "3", ""},
		{"disable bp 3", CmdDisableBP, "3", ""},
		{"clear bp 3", CmdClearBP, "3", ""},
		{"view source 4", CmdViewSource, "4", ""},
		{"view local total", CmdViewLocal, "total", ""},
		{"view global DEBUG", CmdViewGlobal, "DEBUG", ""},
		{"set local total 99", CmdSetLocal, "total", "99"},
	}
	for _, c := range cases {
		cmd, err := ParseCommand(c.line)
		require.NoError(t, err, "ParseCommand(%q)", c.line)
		assert.Equal(t, c.kind, cmd.Kind, "ParseCommand(%q).Kind", c.line)
		assert.Equal(t, c.arg1, cmd.Arg1, "ParseCommand(%q).Arg1", c.line)
		assert.Equal(t, c.arg2, cmd.Arg2, "ParseCommand(%q).Arg2", c.line)
	}
}

func TestParseCommandEmptyInput(t *testing.T) {
	_, err := ParseCommand("   ")
	require.Error(t, err)
	var cerr *pyerrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Unrecognized, "a blank line matches no grammar form and must be marked Unrecognized")
}

func TestParseCommandSetLocalRequiresTwoArgs(t *testing.T) {
	_, err := ParseCommand("set local total")
	require.Error(t, err)
	var cerr *pyerrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.False(t, cerr.Unrecognized, "\"set local\" matched a known verb; only its argument count is wrong")
}

func TestParseCommandUnrecognizedSuggestsNearest(t *testing.T) {
	cmd, err := ParseCommand("nex")
	require.Error(t, err)
	assert.Equal(t, cmdUnknown, cmd.Kind)
	assert.Contains(t, err.Error(), "next")

	var cerr *pyerrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Unrecognized)
}

func TestREPLRunsOnceThenDispatchesUntilQuit(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)

	in := strings.NewReader("view locals\nquit\n")
	require.NoError(t, dbg.REPL(in, ">>> "))

	got := out.String()
	assert.True(t, strings.Contains(got, "Program exited normally with value 3"),
		"REPL must run the program once on entry before reading any commands")
	assert.True(t, strings.Contains(got, ">>> "), "REPL should print the prompt")
}

func TestREPLSilentlyDiscardsUnrecognizedInput(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)

	in := strings.NewReader("bogus\nquit\n")
	require.NoError(t, dbg.REPL(in, ">>> "))
	assert.False(t, strings.Contains(out.String(), "unrecognized command"),
		"input matching no grammar form must be silently ignored, not reported")
}

func TestREPLPrintsMalformedArgumentNotices(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)

	in := strings.NewReader("set bp abc\nset local total\nquit\n")
	require.NoError(t, dbg.REPL(in, ">>> "))
	got := out.String()
	assert.Contains(t, got, "invalid line number", "a recognized command with a malformed argument must still print a notice")
	assert.Contains(t, got, "set local requires a name and a value")
}

func TestREPLStopsAtEOFWithoutQuit(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)

	in := strings.NewReader("")
	require.NoError(t, dbg.REPL(in, ">>> "))
}
