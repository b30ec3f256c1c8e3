package pyvm

import (
	"fmt"
	"io"
	"os"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

// builtins wires the small set of native callables every program can
// reach without an explicit import: print, len, str, int, float, range.
// range returns a ListValue rather than a lazy generator, matching this
// interpreter's lack of a generator protocol (see Non-goals).
func builtins(out io.Writer) map[string]BuiltinFunc {
	if out == nil {
		out = os.Stdout
	}
	return map[string]BuiltinFunc{
		"print": func(args []Value) (Value, error) {
			for idx, a := range args {
				if idx > 0 {
					fmt.Fprint(out, " ")
				}
				fmt.Fprint(out, a.Text())
			}
			fmt.Fprintln(out)
			return NoneValue{}, nil
		},
		"len": func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, &pyerrors.TypeError{Operation: "len", Got: "wrong argument count"}
			}
			switch v := args[0].(type) {
			case ListValue:
				return IntValue{Val: int64(len(v.Items))}, nil
			case StringValue:
				return IntValue{Val: int64(len(v.Val))}, nil
			case MappingValue:
				return IntValue{Val: int64(len(v.Items))}, nil
			default:
				return nil, &pyerrors.TypeError{Operation: "len", Got: v.Type()}
			}
		},
		"str": func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, &pyerrors.TypeError{Operation: "str", Got: "wrong argument count"}
			}
			return StringValue{Val: args[0].Text()}, nil
		},
		"int": func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, &pyerrors.TypeError{Operation: "int", Got: "wrong argument count"}
			}
			v, _, ok := numeric(args[0])
			if !ok {
				return nil, &pyerrors.TypeError{Operation: "int", Got: args[0].Type()}
			}
			return IntValue{Val: int64(v)}, nil
		},
		"float": func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, &pyerrors.TypeError{Operation: "float", Got: "wrong argument count"}
			}
			v, _, ok := numeric(args[0])
			if !ok {
				return nil, &pyerrors.TypeError{Operation: "float", Got: args[0].Type()}
			}
			return FloatValue{Val: v}, nil
		},
		"range": func(args []Value) (Value, error) {
			var start, stop int64 = 0, 0
			switch len(args) {
			case 1:
				v, ok := args[0].(IntValue)
				if !ok {
					return nil, &pyerrors.TypeError{Operation: "range", Got: args[0].Type()}
				}
				stop = v.Val
			case 2:
				sv, ok1 := args[0].(IntValue)
				ev, ok2 := args[1].(IntValue)
				if !ok1 || !ok2 {
					return nil, &pyerrors.TypeError{Operation: "range", Got: "non-int bound"}
				}
				start, stop = sv.Val, ev.Val
			default:
				return nil, &pyerrors.TypeError{Operation: "range", Got: "wrong argument count"}
			}
			items := make([]Value, 0, stop-start)
			for n := start; n < stop; n++ {
				items = append(items, IntValue{Val: n})
			}
			return ListValue{Items: items}, nil
		},
	}
}

func defaultBuiltins() map[string]BuiltinFunc { return builtins(nil) }
