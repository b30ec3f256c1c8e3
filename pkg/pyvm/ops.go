package pyvm

import (
	"math"
	"strings"

	"github.com/ssarangi/pyvym/pkg/pyerrors"
)

func numeric(v Value) (float64, bool, bool) {
	switch t := v.(type) {
	case IntValue:
		return float64(t.Val), true, true
	case FloatValue:
		return t.Val, false, true
	case BoolValue:
		if t.Val {
			return 1, true, true
		}
		return 0, true, true
	default:
		return 0, false, false
	}
}

// canonicalBinaryOp maps an INPLACE_* opcode onto the BINARY_* opcode that
// computes the same result; this VM has no mutable-in-place fast path (only
// List/Mapping are reference types and neither participates in these
// operators), so INPLACE_* opcodes share the BINARY_* arithmetic entirely.
func canonicalBinaryOp(op Opcode) Opcode {
	switch op {
	case INPLACE_ADD:
		return BINARY_ADD
	case INPLACE_SUBTRACT:
		return BINARY_SUBTRACT
	case INPLACE_MULTIPLY:
		return BINARY_MULTIPLY
	case INPLACE_DIVIDE:
		return BINARY_DIVIDE
	case INPLACE_MODULO:
		return BINARY_MODULO
	case INPLACE_POWER:
		return BINARY_POWER
	case INPLACE_FLOOR_DIVIDE:
		return BINARY_FLOOR_DIVIDE
	case INPLACE_LSHIFT:
		return BINARY_LSHIFT
	case INPLACE_RSHIFT:
		return BINARY_RSHIFT
	case INPLACE_AND:
		return BINARY_AND
	case INPLACE_OR:
		return BINARY_OR
	case INPLACE_XOR:
		return BINARY_XOR
	default:
		return op
	}
}

func (i *Interpreter) binaryOp(f *ExecutionFrame, op Opcode) error {
	op = canonicalBinaryOp(op)
	vals, err := f.PopN(2)
	if err != nil {
		return err
	}
	a, b := vals[0], vals[1]

	if as, ok := a.(StringValue); ok && op == BINARY_ADD {
		if bs, ok := b.(StringValue); ok {
			f.Push(StringValue{Val: as.Val + bs.Val})
			return nil
		}
	}
	if al, ok := a.(ListValue); ok && op == BINARY_ADD {
		if bl, ok := b.(ListValue); ok {
			combined := make([]Value, 0, len(al.Items)+len(bl.Items))
			combined = append(combined, al.Items...)
			combined = append(combined, bl.Items...)
			f.Push(ListValue{Items: combined})
			return nil
		}
	}

	switch op {
	case BINARY_LSHIFT, BINARY_RSHIFT, BINARY_AND, BINARY_OR, BINARY_XOR:
		ai, aOK := integral(a)
		bi, bOK := integral(b)
		if !aOK || !bOK {
			return &pyerrors.TypeError{Operation: op.Name(), Got: a.Type()}
		}
		var result int64
		switch op {
		case BINARY_LSHIFT:
			result = ai << uint(bi)
		case BINARY_RSHIFT:
			result = ai >> uint(bi)
		case BINARY_AND:
			result = ai & bi
		case BINARY_OR:
			result = ai | bi
		case BINARY_XOR:
			result = ai ^ bi
		}
		f.Push(IntValue{Val: result})
		return nil
	}

	av, aIsInt, aOK := numeric(a)
	bv, bIsInt, bOK := numeric(b)
	if !aOK || !bOK {
		return &pyerrors.TypeError{Operation: op.Name(), Got: a.Type()}
	}
	bothInt := aIsInt && bIsInt

	var result float64
	switch op {
	case BINARY_ADD:
		result = av + bv
	case BINARY_SUBTRACT:
		result = av - bv
	case BINARY_MULTIPLY:
		result = av * bv
	case BINARY_DIVIDE:
		if bv == 0 {
			return &pyerrors.TypeError{Operation: "BINARY_DIVIDE", Got: "division by zero"}
		}
		result = av / bv
		bothInt = false
	case BINARY_FLOOR_DIVIDE:
		if bv == 0 {
			return &pyerrors.TypeError{Operation: "BINARY_FLOOR_DIVIDE", Got: "division by zero"}
		}
		result = math.Floor(av / bv)
	case BINARY_MODULO:
		if bv == 0 {
			return &pyerrors.TypeError{Operation: "BINARY_MODULO", Got: "division by zero"}
		}
		result = float64(int64(av) % int64(bv))
	case BINARY_POWER:
		result = ipow(av, bv)
	}
	if bothInt {
		f.Push(IntValue{Val: int64(result)})
	} else {
		f.Push(FloatValue{Val: result})
	}
	return nil
}

// integral narrows a numeric Value to an int64 for the bitwise operators,
// which this dialect only defines over Int/Bool, never Float.
func integral(v Value) (int64, bool) {
	switch t := v.(type) {
	case IntValue:
		return t.Val, true
	case BoolValue:
		if t.Val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// binarySubscr implements BINARY_SUBSCR: TOS <- TOS1[TOS], over List (by
// integer index) and Mapping (by string key).
func binarySubscr(f *ExecutionFrame) error {
	vals, err := f.PopN(2)
	if err != nil {
		return err
	}
	container, key := vals[0], vals[1]
	switch c := container.(type) {
	case ListValue:
		idx, ok := integral(key)
		if !ok {
			return &pyerrors.TypeError{Operation: "BINARY_SUBSCR", Got: key.Type()}
		}
		if idx < 0 || int(idx) >= len(c.Items) {
			return &pyerrors.TypeError{Operation: "BINARY_SUBSCR", Got: "index out of range"}
		}
		f.Push(c.Items[idx])
		return nil
	case MappingValue:
		k, ok := key.(StringValue)
		if !ok {
			return &pyerrors.TypeError{Operation: "BINARY_SUBSCR", Got: key.Type()}
		}
		v, ok := c.Items[k.Val]
		if !ok {
			return &pyerrors.TypeError{Operation: "BINARY_SUBSCR", Got: "key not found"}
		}
		f.Push(v)
		return nil
	default:
		return &pyerrors.TypeError{Operation: "BINARY_SUBSCR", Got: container.Type()}
	}
}

// storeSubscr implements STORE_SUBSCR: TOS1[TOS] <- TOS2. Unlike the other
// BINARY_*/STORE_* pairs, the container is left on the stack afterward
// rather than fully consumed, per this dialect's documented stack effect.
func storeSubscr(f *ExecutionFrame) error {
	vals, err := f.PopN(3)
	if err != nil {
		return err
	}
	val, container, key := vals[0], vals[1], vals[2]
	switch c := container.(type) {
	case ListValue:
		idx, ok := integral(key)
		if !ok {
			return &pyerrors.TypeError{Operation: "STORE_SUBSCR", Got: key.Type()}
		}
		if idx < 0 || int(idx) >= len(c.Items) {
			return &pyerrors.TypeError{Operation: "STORE_SUBSCR", Got: "index out of range"}
		}
		c.Items[idx] = val
		f.Push(c)
		return nil
	case MappingValue:
		k, ok := key.(StringValue)
		if !ok {
			return &pyerrors.TypeError{Operation: "STORE_SUBSCR", Got: key.Type()}
		}
		c.Items[k.Val] = val
		f.Push(c)
		return nil
	default:
		return &pyerrors.TypeError{Operation: "STORE_SUBSCR", Got: container.Type()}
	}
}

func ipow(base, exp float64) float64 {
	result := 1.0
	n := int(exp)
	neg := n < 0
	if neg {
		n = -n
	}
	for k := 0; k < n; k++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func unaryNegative(f *ExecutionFrame, v Value) error {
	switch t := v.(type) {
	case IntValue:
		f.Push(IntValue{Val: -t.Val})
		return nil
	case FloatValue:
		f.Push(FloatValue{Val: -t.Val})
		return nil
	default:
		return &pyerrors.TypeError{Operation: "UNARY_NEGATIVE", Got: v.Type()}
	}
}

// unaryPositive implements UNARY_POSITIVE: a numeric no-op, still typed.
func unaryPositive(f *ExecutionFrame, v Value) error {
	switch v.(type) {
	case IntValue, FloatValue:
		f.Push(v)
		return nil
	default:
		return &pyerrors.TypeError{Operation: "UNARY_POSITIVE", Got: v.Type()}
	}
}

// unaryInvert implements UNARY_INVERT, the bitwise complement, defined only
// over Int (and Bool, coerced the same way the bitwise BINARY_* opcodes do).
func unaryInvert(f *ExecutionFrame, v Value) error {
	iv, ok := integral(v)
	if !ok {
		return &pyerrors.TypeError{Operation: "UNARY_INVERT", Got: v.Type()}
	}
	f.Push(IntValue{Val: ^iv})
	return nil
}

// Comparison opcodes, encoded as the COMPARE_OP argument.
const (
	CmpLess int = iota
	CmpLessEqual
	CmpEqual
	CmpNotEqual
	CmpGreater
	CmpGreaterEqual
	CmpIn
	CmpNotIn
	CmpIs
	CmpIsNot
	CmpExceptionMatch
)

func (i *Interpreter) compareOp(f *ExecutionFrame, cmp int) error {
	vals, err := f.PopN(2)
	if err != nil {
		return err
	}
	a, b := vals[0], vals[1]

	switch cmp {
	case CmpEqual, CmpNotEqual:
		eq := valuesEqual(a, b)
		if cmp == CmpNotEqual {
			eq = !eq
		}
		f.Push(BoolValue{Val: eq})
		return nil

	case CmpIs, CmpIsNot:
		same := sameIdentity(a, b)
		if cmp == CmpIsNot {
			same = !same
		}
		f.Push(BoolValue{Val: same})
		return nil

	case CmpIn, CmpNotIn:
		found, err := containsValue(b, a)
		if err != nil {
			return err
		}
		if cmp == CmpNotIn {
			found = !found
		}
		f.Push(BoolValue{Val: found})
		return nil

	case CmpExceptionMatch:
		ac, aOK := a.(*ClassValue)
		bc, bOK := b.(*ClassValue)
		if !aOK || !bOK {
			return &pyerrors.TypeError{Operation: "COMPARE_OP", Got: a.Type()}
		}
		f.Push(BoolValue{Val: ac == bc || ac.Name == bc.Name})
		return nil
	}

	av, _, aOK := numeric(a)
	bv, _, bOK := numeric(b)
	if !aOK || !bOK {
		return &pyerrors.TypeError{Operation: "COMPARE_OP", Got: a.Type()}
	}
	var result bool
	switch cmp {
	case CmpLess:
		result = av < bv
	case CmpLessEqual:
		result = av <= bv
	case CmpGreater:
		result = av > bv
	case CmpGreaterEqual:
		result = av >= bv
	default:
		return &pyerrors.DecodeError{Message: "unknown comparison operator"}
	}
	f.Push(BoolValue{Val: result})
	return nil
}

// sameIdentity implements `is`/`is not`: reference identity for Instance,
// Class and Function values, value equality for the immutable primitives
// CPython also folds to the same interned objects in practice. List,
// Mapping and Module values never compare identical, not even to
// themselves.
func sameIdentity(a, b Value) bool {
	switch at := a.(type) {
	case *InstanceValue:
		bt, ok := b.(*InstanceValue)
		return ok && at == bt
	case *ClassValue:
		bt, ok := b.(*ClassValue)
		return ok && at == bt
	case *FunctionValue:
		bt, ok := b.(*FunctionValue)
		return ok && at == bt
	case NoneValue:
		_, ok := b.(NoneValue)
		return ok
	default:
		return valuesEqual(a, b)
	}
}

// containsValue implements the `in` comparator's right-hand container scan
// over List (element equality) and Mapping (string-key membership).
func containsValue(container, needle Value) (bool, error) {
	switch c := container.(type) {
	case ListValue:
		for _, item := range c.Items {
			if valuesEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case MappingValue:
		k, ok := needle.(StringValue)
		if !ok {
			return false, nil
		}
		_, found := c.Items[k.Val]
		return found, nil
	case StringValue:
		needleStr, ok := needle.(StringValue)
		if !ok {
			return false, &pyerrors.TypeError{Operation: "COMPARE_OP", Got: needle.Type()}
		}
		return strings.Contains(c.Val, needleStr.Val), nil
	default:
		return false, &pyerrors.TypeError{Operation: "COMPARE_OP", Got: container.Type()}
	}
}

func valuesEqual(a, b Value) bool {
	if a.Type() != b.Type() {
		if av, _, aOK := numeric(a); aOK {
			if bv, _, bOK := numeric(b); bOK {
				return av == bv
			}
		}
		return false
	}
	switch at := a.(type) {
	case IntValue:
		return at.Val == b.(IntValue).Val
	case FloatValue:
		return at.Val == b.(FloatValue).Val
	case BoolValue:
		return at.Val == b.(BoolValue).Val
	case StringValue:
		return at.Val == b.(StringValue).Val
	case NoneValue:
		return true
	default:
		return false
	}
}

func (i *Interpreter) loadAttr(f *ExecutionFrame, obj Value, name string) error {
	switch o := obj.(type) {
	case *InstanceValue:
		if v, ok := o.Attributes[name]; ok {
			f.Push(v)
			return nil
		}
		if fn, ok := o.Class.Methods[name]; ok {
			f.Push(fn)
			f.Push(o)
			return nil
		}
		if fn, ok := o.Class.SpecialMethods[name]; ok {
			f.Push(fn)
			f.Push(o)
			return nil
		}
		if v, ok := o.Class.Attributes[name]; ok {
			f.Push(v)
			return nil
		}
		return i.nameError(name, false)
	case *ClassValue:
		if v, ok := o.Attributes[name]; ok {
			f.Push(v)
			return nil
		}
		if fn, ok := o.Methods[name]; ok {
			f.Push(fn)
			return nil
		}
		return i.nameError(name, false)
	case MappingValue:
		if v, ok := o.Items[name]; ok {
			f.Push(v)
			return nil
		}
		return i.nameError(name, false)
	default:
		return &pyerrors.TypeError{Operation: "LOAD_ATTR", Got: obj.Type()}
	}
}

func storeAttr(obj Value, name string, val Value) error {
	switch o := obj.(type) {
	case *InstanceValue:
		o.Attributes[name] = val
		return nil
	case *ClassValue:
		o.Attributes[name] = val
		return nil
	case MappingValue:
		o.Items[name] = val
		return nil
	default:
		return &pyerrors.TypeError{Operation: "STORE_ATTR", Got: obj.Type()}
	}
}
