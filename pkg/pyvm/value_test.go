package pyvm

import "testing"

func TestValueTextAndType(t *testing.T) {
	cases := []struct {
		v        Value
		wantType string
		wantText string
	}{
		{NoneValue{}, "none", "None"},
		{IntValue{Val: 42}, "int", "42"},
		{FloatValue{Val: 1.5}, "float", "1.5"},
		{BoolValue{Val: true}, "bool", "True"},
		{BoolValue{Val: false}, "bool", "False"},
		{StringValue{Val: "hi"}, "str", "hi"},
		{ListValue{Items: []Value{IntValue{Val: 1}, IntValue{Val: 2}}}, "list", "[1, 2]"},
	}
	for _, c := range cases {
		if got := c.v.Type(); got != c.wantType {
			t.Errorf("Type() = %q, want %q", got, c.wantType)
		}
		if got := c.v.Text(); got != c.wantText {
			t.Errorf("Text() = %q, want %q", got, c.wantText)
		}
	}
}

func TestIteratorValueNext(t *testing.T) {
	it := &IteratorValue{Items: []Value{IntValue{Val: 1}, IntValue{Val: 2}}}

	v, ok := it.Next()
	if !ok || v.(IntValue).Val != 1 {
		t.Fatalf("first Next() = %v, %v", v, ok)
	}
	v, ok = it.Next()
	if !ok || v.(IntValue).Val != 2 {
		t.Fatalf("second Next() = %v, %v", v, ok)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("Next() past the end should report exhaustion, not a value")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NoneValue{}, false},
		{BoolValue{Val: false}, false},
		{BoolValue{Val: true}, true},
		{IntValue{Val: 0}, false},
		{IntValue{Val: 1}, true},
		{StringValue{Val: ""}, false},
		{StringValue{Val: "x"}, true},
		{ListValue{}, false},
		{ListValue{Items: []Value{NoneValue{}}}, true},
	}
	for _, c := range cases {
		if got := truthy(c.v); got != c.want {
			t.Errorf("truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}
