package pydebug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssarangi/pyvym/pkg/pyvm"
)

// threeLineProgram builds:
//
//	1: a = 1
//	2: b = 2
//	3: c = a + b
//	4: return c
func threeLineProgram() *pyvm.CodeObject {
	bytecode := []byte{
		byte(pyvm.LOAD_CONST), 0x00, 0x00, // 0: 1
		byte(pyvm.STORE_FAST), 0x00, 0x00, // 3: a
		byte(pyvm.LOAD_CONST), 0x01, 0x00, // 6: 2
		byte(pyvm.STORE_FAST), 0x01, 0x00, // 9: b
		byte(pyvm.LOAD_FAST), 0x00, 0x00, // 12: a
		byte(pyvm.LOAD_FAST), 0x01, 0x00, // 15: b
		byte(pyvm.BINARY_ADD), // 18
		byte(pyvm.STORE_FAST), 0x02, 0x00, // 19: c
		byte(pyvm.LOAD_FAST), 0x02, 0x00, // 22: c
		byte(pyvm.RETURN_VALUE), // 25
	}
	return &pyvm.CodeObject{
		Name:        "<module>",
		Bytecode:    bytecode,
		Constants:   []pyvm.Value{pyvm.IntValue{Val: 1}, pyvm.IntValue{Val: 2}},
		VarNames:    []string{"a", "b", "c"},
		FirstLineNo: 1,
		Lnotab:      []int{6, 1, 6, 1, 10, 1, 4, 0},
		SourceLines: []string{"a = 1", "b = 2", "c = a + b", "return c"},
	}
}

func TestRunVMStopsOnBreakpointBeforeExecutingTheLine(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	dbg.SetBreakpoint(3)

	var hitLine, hitCount int
	dbg.OnBreakpointHit = func(line, count int) {
		hitLine, hitCount = line, count
	}

	require.NoError(t, dbg.RunVM())
	assert.Equal(t, 3, hitLine)
	assert.Equal(t, 1, hitCount)

	locals := dbg.LocalsSnapshot()
	assert.Equal(t, "1", locals["a"])
	assert.Equal(t, "2", locals["b"])
	_, hasC := locals["c"]
	assert.False(t, hasC, "c is only stored once line 3 finishes executing, which hasn't happened yet")
}

func TestRunVMContinuesToCompletionAfterBreakpoint(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	dbg.SetBreakpoint(3)

	require.NoError(t, dbg.RunVM())
	require.NoError(t, dbg.RunVM())

	assert.True(t, strings.Contains(out.String(), "Program exited normally with value 3"))
}

func TestBreakpointDoesNotRefireOnSameLine(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	dbg.SetBreakpoint(1)

	hits := 0
	dbg.OnBreakpointHit = func(line, count int) { hits++ }

	// Line 1 spans two instructions (LOAD_CONST, STORE_FAST). The first
	// RunVM call stops immediately on entering line 1; the second call
	// must step over its second instruction without re-triggering, then
	// run the rest of the program to completion since no other line has
	// a breakpoint.
	require.NoError(t, dbg.RunVM())
	require.NoError(t, dbg.RunVM())
	assert.Equal(t, 1, hits, "line 1 covers two instructions; the breakpoint must fire once, not twice")
	assert.True(t, strings.Contains(out.String(), "Program exited normally with value 3"))
}

func TestNextInstFiresOnNextWhenLineChanges(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)

	var lines []int
	dbg.OnNext = func(line int) { lines = append(lines, line) }

	// threeLineProgram's line 1 is two instructions (LOAD_CONST, STORE_FAST).
	// The first NextInst starts from a fresh VM at ip 0, which already sits
	// on line 1, so it steps through both of line 1's instructions and
	// fires OnNext for line 2; the second one fires it for line 3.
	require.NoError(t, dbg.NextInst())
	require.NoError(t, dbg.NextInst())
	assert.Equal(t, []int{2, 3}, lines)
}

func TestSetLocalCoercesToExistingType(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	dbg.SetBreakpoint(3)
	require.NoError(t, dbg.RunVM())

	require.NoError(t, dbg.SetLocal("a", "99"))
	locals := dbg.LocalsSnapshot()
	assert.Equal(t, "99", locals["a"])

	require.NoError(t, dbg.RunVM())
	assert.Equal(t, "Program exited normally with value 101\n", lastLine(out.String()))
}

func TestSetLocalOnUnknownNameErrors(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	dbg.SetBreakpoint(3)
	require.NoError(t, dbg.RunVM())

	err := dbg.SetLocal("zzz", "1")
	assert.Error(t, err)
}

func TestDeterministicReentryAfterNaturalTermination(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	require.NoError(t, dbg.RunVM())
	first := out.String()

	require.NoError(t, dbg.RunVM())
	second := out.String()[len(first):]

	assert.Equal(t, first, second, "running the same program twice must produce identical output")
}

func TestBacktraceListsModuleFrame(t *testing.T) {
	var out bytes.Buffer
	dbg := New(threeLineProgram(), &out)
	bt := dbg.Backtrace()
	require.Len(t, bt, 1)
	assert.Equal(t, "<module>", bt[0])
}

func lastLine(s string) string {
	trimmed := strings.TrimRight(s, "\n")
	idx := strings.LastIndex(trimmed, "\n")
	return trimmed[idx+1:] + "\n"
}
