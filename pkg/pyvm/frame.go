package pyvm

import "github.com/ssarangi/pyvym/pkg/pyerrors"

// ExecutionFrame is the unit of execution state: a value stack, a locals
// table, an instruction pointer into Code, and a link to a parent frame.
// The parent link exists for exactly one reason -- a loop-block frame
// pushed by SETUP_LOOP shares its enclosing frame's locals transparently
// rather than copying them, so a store inside the loop body is visible
// after POP_BLOCK pops the block frame back off.
type ExecutionFrame struct {
	Name   string
	Code   *CodeObject
	Module *Module
	Parent *ExecutionFrame
	IsLoopBlock bool

	stack  []Value
	Locals map[string]Value
	IP     int
}

// NewExecutionFrame creates a frame with its own fresh, empty locals map;
// a loop-block frame gets one too and reaches its enclosing frame's
// bindings through the parent-link walk below.
func NewExecutionFrame(name string, code *CodeObject, module *Module, parent *ExecutionFrame) *ExecutionFrame {
	return &ExecutionFrame{
		Name:   name,
		Code:   code,
		Module: module,
		Parent: parent,
		Locals: make(map[string]Value),
	}
}

// NewLoopBlockFrame creates a transparent frame for SETUP_LOOP: its own
// stack, but locals -- and the instruction pointer -- read/written through
// the parent chain. A block frame never keeps its own ip: GetIP/SetIP
// always defer to the nearest non-block ancestor, so there is only ever
// one ip in play for a call frame and any loop blocks nested inside it.
func NewLoopBlockFrame(parent *ExecutionFrame) *ExecutionFrame {
	f := NewExecutionFrame("<block>", parent.Code, parent.Module, parent)
	f.IsLoopBlock = true
	return f
}

// GetIP returns the live instruction pointer, delegating to the nearest
// non-block ancestor when this frame is a loop block.
func (f *ExecutionFrame) GetIP() int {
	if f.IsLoopBlock {
		return f.Parent.GetIP()
	}
	return f.IP
}

// SetIP sets the live instruction pointer, delegating the same way.
func (f *ExecutionFrame) SetIP(ip int) {
	if f.IsLoopBlock {
		f.Parent.SetIP(ip)
		return
	}
	f.IP = ip
}

func (f *ExecutionFrame) Push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *ExecutionFrame) Pop() (Value, error) {
	if len(f.stack) == 0 {
		return nil, &pyerrors.StackError{IP: f.GetIP(), Message: "pop from empty stack"}
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// PopN pops n values and returns them in push order (oldest first).
func (f *ExecutionFrame) PopN(n int) ([]Value, error) {
	if n < 0 || len(f.stack) < n {
		return nil, &pyerrors.StackError{IP: f.GetIP(), Message: "not enough values on stack"}
	}
	start := len(f.stack) - n
	out := make([]Value, n)
	copy(out, f.stack[start:])
	f.stack = f.stack[:start]
	return out, nil
}

func (f *ExecutionFrame) Top() (Value, error) {
	if len(f.stack) == 0 {
		return nil, &pyerrors.StackError{IP: f.GetIP(), Message: "top of empty stack"}
	}
	return f.stack[len(f.stack)-1], nil
}

func (f *ExecutionFrame) StackDepth() int { return len(f.stack) }

// GetLocal walks from this frame up through parent links, returning the
// first binding found. A loop-block frame holds only the names first bound
// inside it; every other name resolves in the enclosing frame where it was
// set.
func (f *ExecutionFrame) GetLocal(name string) (Value, bool) {
	for cur := f; cur != nil; cur = cur.Parent {
		if v, ok := cur.Locals[name]; ok {
			return v, true
		}
		if !cur.IsLoopBlock {
			break
		}
	}
	return nil, false
}

// SetLocal updates an existing binding wherever it already lives along the
// parent chain (so a loop body reassigning an enclosing local mutates that
// local, not a shadow), or creates a new binding in this frame if no
// binding exists yet anywhere in the chain.
func (f *ExecutionFrame) SetLocal(name string, v Value) {
	for cur := f; cur != nil; cur = cur.Parent {
		if _, ok := cur.Locals[name]; ok {
			cur.Locals[name] = v
			return
		}
		if !cur.IsLoopBlock {
			break
		}
	}
	f.Locals[name] = v
}

// GetGlobal consults the owning module's globals table.
func (f *ExecutionFrame) GetGlobal(name string) (Value, bool) {
	v, ok := f.Module.Globals[name]
	return v, ok
}

// SetGlobal writes into the owning module's globals table.
func (f *ExecutionFrame) SetGlobal(name string, v Value) {
	f.Module.Globals[name] = v
}

// LocalNames returns every name currently bound anywhere along the parent
// chain, nearest frame first -- used by "view locals" and by the "did you
// mean" suggestions for unbound names.
func (f *ExecutionFrame) LocalNames() []string {
	seen := map[string]bool{}
	var names []string
	for cur := f; cur != nil; cur = cur.Parent {
		for name := range cur.Locals {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if !cur.IsLoopBlock {
			break
		}
	}
	return names
}
