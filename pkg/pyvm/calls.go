package pyvm

import (
	"time"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

// makeFunction pops arg default values followed by one CodeValue operand
// and pushes the resulting FunctionValue, closed over the current module.
func (i *Interpreter) makeFunction(f *ExecutionFrame, argc int) error {
	defaults, err := f.PopN(argc)
	if err != nil {
		return err
	}
	codeVal, err := f.Pop()
	if err != nil {
		return err
	}
	cv, ok := codeVal.(CodeValue)
	if !ok {
		return &pyerrors.TypeError{Operation: "MAKE_FUNCTION", Got: codeVal.Type()}
	}
	f.Push(&FunctionValue{Name: cv.Code.Name, Code: cv.Code, Defaults: defaults, Module: i.Module})
	return nil
}

// callFunction implements CALL_FUNCTION. The low byte of argc is the
// positional argument count, the next byte is the keyword-pair count:
// the stack holds (name, value) keyword pairs above the positional args,
// above the callable itself.
func (i *Interpreter) callFunction(f *ExecutionFrame, argc int) (bool, error) {
	posCount := argc & 0xFF
	kwCount := (argc >> 8) & 0xFF

	kwVals, err := f.PopN(kwCount * 2)
	if err != nil {
		return false, err
	}
	kwargs := make(map[string]Value, kwCount)
	for idx := 0; idx < len(kwVals); idx += 2 {
		key, ok := kwVals[idx].(StringValue)
		if !ok {
			return false, &pyerrors.TypeError{Operation: "CALL_FUNCTION", Got: kwVals[idx].Type()}
		}
		kwargs[key.Val] = kwVals[idx+1]
	}

	posArgs, err := f.PopN(posCount)
	if err != nil {
		return false, err
	}
	callee, err := f.Pop()
	if err != nil {
		return false, err
	}

	start := time.Now()
	done, err := i.invoke(f, callee, posArgs, kwargs)
	if i.Metrics != nil {
		i.Metrics.CallObserved(time.Since(start))
	}
	return done, err
}

// invoke dispatches the four call shapes named by this interpreter's
// design: a native builtin, a class constructor, a bound method (whose
// receiver LOAD_ATTR already pushed as the first positional argument),
// and an ordinary user function.
func (i *Interpreter) invoke(f *ExecutionFrame, callee Value, args []Value, kwargs map[string]Value) (bool, error) {
	switch c := callee.(type) {
	case BuiltinValue:
		result, err := c.Fn(args)
		if err != nil {
			return false, err
		}
		f.Push(result)
		return false, nil

	case BuilderValue:
		result, err := i.buildClass(args)
		if err != nil {
			return false, err
		}
		f.Push(result)
		return false, nil

	case *ClassValue:
		inst := &InstanceValue{Class: c, Attributes: make(map[string]Value)}
		inst.BindingFrame = NewExecutionFrame(c.Name+".<self>", f.Code, i.Module, nil)
		inst.BindingFrame.Locals["self"] = inst
		if init, ok := c.SpecialMethods["__init__"]; ok {
			if span := i.startSpan("call:" + c.Name + ".__init__"); span != nil {
				defer span()
			}
			_, err := i.callBound(inst, init, append([]Value{inst}, args...), kwargs)
			if err != nil {
				return false, err
			}
		}
		f.Push(inst)
		return false, nil

	case *FunctionValue:
		if span := i.startSpan("call:" + c.Name); span != nil {
			defer span()
		}
		var result Value
		var err error
		if inst, ok := isBoundMethodCall(c, args); ok {
			result, err = i.callBound(inst, c, args, kwargs)
		} else {
			result, err = i.call(c, args, kwargs)
		}
		if err != nil {
			return false, err
		}
		f.Push(result)
		return false, nil

	default:
		return false, &pyerrors.TypeError{Operation: "CALL_FUNCTION", Got: callee.Type()}
	}
}

func (i *Interpreter) startSpan(name string) func() {
	if i.Tracer == nil {
		return nil
	}
	return i.Tracer.StartSpan(name)
}

// isBoundMethodCall reports whether args[0] is the instance that fn was
// looked up on via LOAD_ATTR -- i.e. fn is listed under that instance's
// class, either as an ordinary method or a special one such as __init__.
// When it is, the call must run through that instance's binding frame
// rather than a disposable one, so that locals a method stores (beyond the
// ones already tracked in Attributes) survive to the next call.
func isBoundMethodCall(fn *FunctionValue, args []Value) (*InstanceValue, bool) {
	if len(args) == 0 {
		return nil, false
	}
	inst, ok := args[0].(*InstanceValue)
	if !ok || inst.Class == nil {
		return nil, false
	}
	for _, m := range inst.Class.Methods {
		if m == fn {
			return inst, true
		}
	}
	for _, m := range inst.Class.SpecialMethods {
		if m == fn {
			return inst, true
		}
	}
	return nil, false
}

// call binds args/kwargs/defaults into a fresh frame's locals per
// co_varnames, pushes it onto the frame stack, runs it to RETURN_VALUE,
// and returns the value it produced.
func (i *Interpreter) call(fn *FunctionValue, args []Value, kwargs map[string]Value) (Value, error) {
	frame := NewExecutionFrame(fn.Name, fn.Code, i.Module, nil)
	if err := bindArguments(frame, fn, args, kwargs); err != nil {
		return nil, err
	}
	return i.runFrame(frame)
}

// callBound runs fn against the instance's own binding frame instead of a
// fresh one: the frame's Code, IP, and value stack are reset for this call
// but its Locals map carries over from the last call on the same instance,
// so a method's own locals (self's attribute writes included) persist
// across bound-method calls the way the instance's Attributes dict already
// does.
func (i *Interpreter) callBound(inst *InstanceValue, fn *FunctionValue, args []Value, kwargs map[string]Value) (Value, error) {
	frame := inst.BindingFrame
	frame.Name = fn.Name
	frame.Code = fn.Code
	frame.IP = 0
	frame.stack = nil
	if err := bindArguments(frame, fn, args, kwargs); err != nil {
		return nil, err
	}
	return i.runFrame(frame)
}

// runFrame pushes frame onto the frame stack and steps the interpreter
// until it unwinds back below the depth it was pushed at, returning
// whatever RETURN_VALUE last produced.
func (i *Interpreter) runFrame(frame *ExecutionFrame) (Value, error) {
	i.Frames.Push(frame)
	depthAtEntry := i.Frames.Depth()
	for i.Frames.Depth() >= depthAtEntry {
		done, err := i.Step()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return i.lastReturn, nil
}

// bindArguments fills frame.Locals from co_varnames: positional args
// first, then keyword args by name, then defaults for whatever remains
// unbound, following the Code Object's argcount/varnames layout.
func bindArguments(frame *ExecutionFrame, fn *FunctionValue, args []Value, kwargs map[string]Value) error {
	code := fn.Code
	for idx := 0; idx < code.ArgCount && idx < len(code.VarNames); idx++ {
		name := code.VarNames[idx]
		switch {
		case idx < len(args):
			frame.Locals[name] = args[idx]
		case kwargs != nil && kwargsHas(kwargs, name):
			frame.Locals[name] = kwargs[name]
		default:
			defIdx := idx - (code.ArgCount - len(fn.Defaults))
			if defIdx >= 0 && defIdx < len(fn.Defaults) {
				frame.Locals[name] = fn.Defaults[defIdx]
			} else {
				return &pyerrors.NameError{Name: name, Global: false}
			}
		}
	}
	return nil
}

func kwargsHas(kwargs map[string]Value, name string) bool {
	_, ok := kwargs[name]
	return ok
}

// returnValue pops the current call frame (and any loop blocks still open
// inside it) and records its return value. When the popped frame is the
// root module frame, the whole program has finished.
func (i *Interpreter) returnValue() (bool, error) {
	f := i.currentFrame()
	v, err := f.Pop()
	if err != nil {
		return false, err
	}
	i.lastReturn = v
	i.ReturnValue = v

	for {
		popped, err := i.Frames.Pop()
		if err != nil {
			return false, err
		}
		if !popped.IsLoopBlock {
			break
		}
	}
	i.Halted = i.Frames.Depth() == 0
	return i.Halted, nil
}
