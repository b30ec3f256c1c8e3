package pyvm

import (
	"strings"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

// isSpecialMethod reports whether name follows the __name__ convention
// that marks a special method (constructors, operator overloads) rather
// than an ordinary one.
func isSpecialMethod(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4
}

// buildClass runs the class-builder sub-interpreter: CALL_FUNCTION routed
// here after LOAD_BUILD_CLASS pushed a BuilderValue. Its arguments are the
// function MAKE_FUNCTION built from the class body's Code Object and the
// class name. The body runs on a sub-interpreter that understands exactly five
// opcodes -- LOAD_CONST, LOAD_NAME, STORE_NAME, MAKE_FUNCTION,
// RETURN_VALUE -- classifying every STORE_NAME target into the class's
// special-method table, ordinary-method table, or plain attribute table,
// and installing the resulting ClassValue into the module's class table
// when the body returns.
func (i *Interpreter) buildClass(args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, &pyerrors.TypeError{Operation: "LOAD_BUILD_CLASS", Got: "wrong argument count"}
	}
	bodyFunc, ok := args[0].(*FunctionValue)
	if !ok {
		return nil, &pyerrors.TypeError{Operation: "LOAD_BUILD_CLASS", Got: args[0].Type()}
	}
	className, ok := args[1].(StringValue)
	if !ok {
		return nil, &pyerrors.TypeError{Operation: "LOAD_BUILD_CLASS", Got: args[1].Type()}
	}
	bodyCode := CodeValue{Code: bodyFunc.Code}
	if span := i.startSpan("class:" + className.Val); span != nil {
		defer span()
	}

	class := &ClassValue{
		Name:           className.Val,
		SpecialMethods: make(map[string]*FunctionValue),
		Methods:        make(map[string]*FunctionValue),
		Attributes:     make(map[string]Value),
	}

	body := NewExecutionFrame(className.Val+".<body>", bodyCode.Code, i.Module, nil)
	for {
		op, arg, next, err := decode(body)
		if err != nil {
			return nil, err
		}
		body.SetIP(next)
		switch op {
		case LOAD_CONST:
			if arg < 0 || arg >= len(body.Code.Constants) {
				return nil, &pyerrors.DecodeError{IP: body.GetIP(), Message: "constant index out of range"}
			}
			body.Push(body.Code.Constants[arg])

		case LOAD_NAME:
			name := nameAt(body.Code.Names, arg)
			if v, ok := body.Locals[name]; ok {
				body.Push(v)
			} else if v, ok := i.Module.Globals[name]; ok {
				body.Push(v)
			} else {
				return nil, i.nameError(name, false)
			}

		case STORE_NAME:
			v, err := body.Pop()
			if err != nil {
				return nil, err
			}
			name := nameAt(body.Code.Names, arg)
			if fn, ok := v.(*FunctionValue); ok {
				if isSpecialMethod(name) {
					class.SpecialMethods[name] = fn
				} else {
					class.Methods[name] = fn
				}
			} else {
				class.Attributes[name] = v
			}
			body.Locals[name] = v

		case MAKE_FUNCTION:
			if err := i.makeFunction(body, arg); err != nil {
				return nil, err
			}

		case RETURN_VALUE:
			if _, err := body.Pop(); err != nil {
				return nil, err
			}
			i.Module.Classes[class.Name] = class
			return class, nil

		default:
			return nil, &pyerrors.NotImplementedError{IP: body.GetIP(), Opcode: op.Name() + " (class builder)"}
		}
	}
}
