// Package pyvm implements the Code Object, Line Map, Value model,
// Execution Frame, Frame Stack, Interpreter, and Class Builder.
package pyvm

import (
	"fmt"
	"io"
	"time"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

// MetricsHook lets an optional collector observe dispatch without the
// interpreter depending on any particular metrics backend.
type MetricsHook interface {
	OpcodeDispatched(name string)
	CallObserved(duration time.Duration)
	BreakpointHit(line int)
}

// TraceHook lets an optional tracer wrap calls and class construction in
// spans without the interpreter depending on any particular tracer.
type TraceHook interface {
	StartSpan(name string) func()
}

// Interpreter owns the module, its frame stack, and the opcode dispatch
// loop. It also doubles as the Class Builder's host: LOAD_BUILD_CLASS
// hands control to a nested sub-interpreter that understands only five
// opcodes and installs a ClassValue into the module on return.
type Interpreter struct {
	Module   *Module
	Frames   *FrameStack
	Builtins map[string]BuiltinFunc

	Metrics MetricsHook
	Tracer  TraceHook

	Halted      bool
	ReturnValue Value

	lastReturn Value
}

// SetStdout redirects the print builtin's output.
func (i *Interpreter) SetStdout(w io.Writer) {
	i.Builtins = builtins(w)
}

// NewInterpreter builds the root module frame from code and wires in the
// default built-ins.
func NewInterpreter(code *CodeObject) *Interpreter {
	module := &Module{
		Name:    code.Name,
		Globals: make(map[string]Value),
		Classes: make(map[string]*ClassValue),
		Code:    code,
	}
	root := &ExecutionFrame{
		Name:   "<module>",
		Code:   code,
		Module: module,
		Locals: module.Globals,
	}
	frames := NewFrameStack()
	frames.Push(root)
	interp := &Interpreter{
		Module:   module,
		Frames:   frames,
		Builtins: defaultBuiltins(),
	}
	return interp
}

// Reset rebuilds the interpreter from scratch over the same Code Object --
// the deterministic re-entry the debugger performs after a run terminates,
// by construction or by error, so that "run" after "run" behaves
// identically each time.
func (i *Interpreter) Reset(code *CodeObject) {
	fresh := NewInterpreter(code)
	*i = *fresh
}

func (i *Interpreter) currentFrame() *ExecutionFrame { return i.Frames.Current() }

// CurrentFrame exposes the active frame for debugger inspection.
func (i *Interpreter) CurrentFrame() *ExecutionFrame { return i.Frames.Current() }

// decode reads one instruction at the current frame's ip, returning the
// opcode, its argument (0 if none), and the ip of the NEXT instruction.
func decode(f *ExecutionFrame) (Opcode, int, int, error) {
	code := f.Code.Bytecode
	ip := f.GetIP()
	if ip < 0 || ip >= len(code) {
		return 0, 0, 0, &pyerrors.DecodeError{IP: ip, Message: "instruction pointer out of range"}
	}
	op := Opcode(code[ip])
	next := ip + 1
	arg := 0
	if op.HasArg() {
		if ip+2 >= len(code) {
			return 0, 0, 0, &pyerrors.DecodeError{IP: ip, Opcode: byte(op), Message: "truncated argument"}
		}
		arg = int(code[ip+1]) | int(code[ip+2])<<8
		next = ip + 3
	}
	if _, ok := opcodeNames[op]; !ok {
		return 0, 0, 0, &pyerrors.DecodeError{IP: ip, Opcode: byte(op), Message: "unrecognized opcode"}
	}
	return op, arg, next, nil
}

// CurrentLine returns the source line the current frame's ip maps to,
// via the current code object's Line Map.
func (i *Interpreter) CurrentLine() int {
	f := i.currentFrame()
	if f == nil {
		return InvalidLine
	}
	return f.Code.NewLineMap().LineNumber(f.GetIP())
}

// Step decodes and executes exactly one instruction in the current frame.
// It returns true when the whole program has finished (the root module
// frame returned).
func (i *Interpreter) Step() (bool, error) {
	f := i.currentFrame()
	if f == nil || i.Halted {
		return true, nil
	}
	op, arg, next, err := decode(f)
	if err != nil {
		i.Halted = true
		return true, err
	}
	if !supportedOpcodes[op] {
		i.Halted = true
		return true, &pyerrors.NotImplementedError{IP: f.GetIP(), Opcode: op.Name()}
	}
	if i.Metrics != nil {
		i.Metrics.OpcodeDispatched(op.Name())
	}
	f.SetIP(next)
	done, err := i.execute(f, op, arg)
	if err != nil {
		i.Halted = true
		return true, err
	}
	return done, nil
}

// Run executes instructions until the program terminates or an error
// occurs, never stopping at breakpoints -- the Debugger layers breakpoint
// awareness on top by calling Step itself.
func (i *Interpreter) Run() error {
	for {
		done, err := i.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (i *Interpreter) execute(f *ExecutionFrame, op Opcode, arg int) (bool, error) {
	switch op {
	case NOP:
		return false, nil

	case POP_TOP:
		_, err := f.Pop()
		return false, err

	case DUP_TOP:
		v, err := f.Top()
		if err != nil {
			return false, err
		}
		f.Push(v)
		return false, nil

	case ROT_TWO:
		vals, err := f.PopN(2)
		if err != nil {
			return false, err
		}
		f.Push(vals[1])
		f.Push(vals[0])
		return false, nil

	case ROT_THREE:
		vals, err := f.PopN(3)
		if err != nil {
			return false, err
		}
		// vals holds [third, second, top] in push order; TOS becomes third,
		// and the other two shift up one slot.
		f.Push(vals[2])
		f.Push(vals[0])
		f.Push(vals[1])
		return false, nil

	case DUP_TOP_TWO:
		vals, err := f.PopN(2)
		if err != nil {
			return false, err
		}
		f.Push(vals[0])
		f.Push(vals[1])
		f.Push(vals[0])
		f.Push(vals[1])
		return false, nil

	case BINARY_SUBSCR:
		return false, binarySubscr(f)

	case STORE_SUBSCR:
		return false, storeSubscr(f)

	case LOAD_CONST:
		if arg < 0 || arg >= len(f.Code.Constants) {
			return false, &pyerrors.DecodeError{IP: f.GetIP(), Message: "constant index out of range"}
		}
		f.Push(f.Code.Constants[arg])
		return false, nil

	case LOAD_NAME:
		name := nameAt(f.Code.Names, arg)
		if v, ok := f.GetLocal(name); ok {
			f.Push(v)
			return false, nil
		}
		if v, ok := f.GetGlobal(name); ok {
			f.Push(v)
			return false, nil
		}
		if b, ok := i.Builtins[name]; ok {
			f.Push(BuiltinValue{Name: name, Fn: b})
			return false, nil
		}
		return false, i.nameError(name, false)

	case STORE_NAME:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		f.SetLocal(nameAt(f.Code.Names, arg), v)
		return false, nil

	case LOAD_FAST:
		name := nameAt(f.Code.VarNames, arg)
		v, ok := f.GetLocal(name)
		if !ok {
			return false, i.nameError(name, false)
		}
		f.Push(v)
		return false, nil

	case STORE_FAST:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		f.SetLocal(nameAt(f.Code.VarNames, arg), v)
		return false, nil

	case LOAD_GLOBAL:
		name := nameAt(f.Code.Names, arg)
		if v, ok := f.GetGlobal(name); ok {
			f.Push(v)
			return false, nil
		}
		if b, ok := i.Builtins[name]; ok {
			f.Push(BuiltinValue{Name: name, Fn: b})
			return false, nil
		}
		return false, i.nameError(name, true)

	case LOAD_ATTR:
		name := nameAt(f.Code.Names, arg)
		obj, err := f.Pop()
		if err != nil {
			return false, err
		}
		return false, i.loadAttr(f, obj, name)

	case STORE_ATTR:
		name := nameAt(f.Code.Names, arg)
		vals, err := f.PopN(2)
		if err != nil {
			return false, err
		}
		obj, val := vals[0], vals[1]
		return false, storeAttr(obj, name, val)

	case BINARY_ADD, BINARY_SUBTRACT, BINARY_MULTIPLY, BINARY_DIVIDE, BINARY_MODULO,
		BINARY_POWER, BINARY_FLOOR_DIVIDE, BINARY_LSHIFT, BINARY_RSHIFT,
		BINARY_AND, BINARY_OR, BINARY_XOR,
		INPLACE_ADD, INPLACE_SUBTRACT, INPLACE_MULTIPLY, INPLACE_DIVIDE, INPLACE_MODULO,
		INPLACE_POWER, INPLACE_FLOOR_DIVIDE, INPLACE_LSHIFT, INPLACE_RSHIFT,
		INPLACE_AND, INPLACE_OR, INPLACE_XOR:
		return false, i.binaryOp(f, op)

	case UNARY_NEGATIVE:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		return false, unaryNegative(f, v)

	case UNARY_POSITIVE:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		return false, unaryPositive(f, v)

	case UNARY_INVERT:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		return false, unaryInvert(f, v)

	case UNARY_NOT:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		f.Push(BoolValue{Val: !truthy(v)})
		return false, nil

	case COMPARE_OP:
		return false, i.compareOp(f, arg)

	case BUILD_LIST:
		items, err := f.PopN(arg)
		if err != nil {
			return false, err
		}
		f.Push(ListValue{Items: items})
		return false, nil

	case BUILD_MAP:
		vals, err := f.PopN(arg * 2)
		if err != nil {
			return false, err
		}
		m := make(map[string]Value, arg)
		for idx := 0; idx < len(vals); idx += 2 {
			key, ok := vals[idx].(StringValue)
			if !ok {
				return false, &pyerrors.TypeError{Operation: "BUILD_MAP", Got: vals[idx].Type()}
			}
			m[key.Val] = vals[idx+1]
		}
		f.Push(MappingValue{Items: m})
		return false, nil

	case GET_ITER:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		list, ok := v.(ListValue)
		if !ok {
			return false, &pyerrors.TypeError{Operation: "GET_ITER", Got: v.Type()}
		}
		f.Push(&IteratorValue{Items: list.Items})
		return false, nil

	case FOR_ITER:
		top, err := f.Top()
		if err != nil {
			return false, err
		}
		it, ok := top.(*IteratorValue)
		if !ok {
			return false, &pyerrors.TypeError{Operation: "FOR_ITER", Got: top.Type()}
		}
		if v, ok := it.Next(); ok {
			f.Push(v)
		} else {
			if _, err := f.Pop(); err != nil {
				return false, err
			}
			f.SetIP(f.GetIP() + arg)
		}
		return false, nil

	case JUMP_FORWARD:
		f.SetIP(f.GetIP() + arg)
		return false, nil

	case JUMP_ABSOLUTE:
		f.SetIP(arg)
		return false, nil

	case POP_JUMP_IF_FALSE:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		if !truthy(v) {
			f.SetIP(arg)
		}
		return false, nil

	case POP_JUMP_IF_TRUE:
		v, err := f.Pop()
		if err != nil {
			return false, err
		}
		if truthy(v) {
			f.SetIP(arg)
		}
		return false, nil

	case JUMP_IF_TRUE_OR_POP:
		v, err := f.Top()
		if err != nil {
			return false, err
		}
		if truthy(v) {
			f.SetIP(arg)
		} else {
			f.Pop()
		}
		return false, nil

	case JUMP_IF_FALSE_OR_POP:
		v, err := f.Top()
		if err != nil {
			return false, err
		}
		if !truthy(v) {
			f.SetIP(arg)
		} else {
			f.Pop()
		}
		return false, nil

	case SETUP_LOOP:
		i.Frames.Push(NewLoopBlockFrame(f))
		return false, nil

	case POP_BLOCK:
		_, err := i.Frames.Pop()
		return false, err

	case LOAD_BUILD_CLASS:
		f.Push(BuilderValue{})
		return false, nil

	case MAKE_FUNCTION:
		return false, i.makeFunction(f, arg)

	case CALL_FUNCTION:
		return i.callFunction(f, arg)

	case RETURN_VALUE:
		return i.returnValue()

	default:
		return false, &pyerrors.NotImplementedError{IP: f.GetIP(), Opcode: op.Name()}
	}
}

func nameAt(names []string, idx int) string {
	if idx < 0 || idx >= len(names) {
		return fmt.Sprintf("<invalid name %d>", idx)
	}
	return names[idx]
}

func (i *Interpreter) nameError(name string, global bool) error {
	var candidates []string
	f := i.currentFrame()
	if f != nil {
		candidates = append(candidates, f.LocalNames()...)
		for k := range i.Module.Globals {
			candidates = append(candidates, k)
		}
	}
	return &pyerrors.NameError{Name: name, Global: global, Suggestion: pyerrors.Suggest(name, candidates)}
}
