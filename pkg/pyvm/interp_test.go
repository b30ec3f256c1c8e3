package pyvm

import "testing"

// program builds a minimal CodeObject sharing the fields every test below
// needs, following the same hand-assembled-bytecode style the teacher uses
// to exercise its own VM.
func program(bytecode []byte, constants []Value, names, varNames []string, argCount int) *CodeObject {
	return &CodeObject{
		Name:        "<test>",
		Bytecode:    bytecode,
		Constants:   constants,
		Names:       names,
		VarNames:    varNames,
		ArgCount:    argCount,
		FirstLineNo: 1,
	}
}

// TestArithmeticPrecedence runs 1 + 2 * 3 and expects the multiplication to
// bind tighter, i.e. 7, not 9.
func TestArithmeticPrecedence(t *testing.T) {
	code := program(
		[]byte{
			byte(LOAD_CONST), 0x00, 0x00, // 1
			byte(LOAD_CONST), 0x01, 0x00, // 2
			byte(LOAD_CONST), 0x02, 0x00, // 3
			byte(BINARY_MULTIPLY),
			byte(BINARY_ADD),
			byte(RETURN_VALUE),
		},
		[]Value{IntValue{Val: 1}, IntValue{Val: 2}, IntValue{Val: 3}},
		nil, nil, 0,
	)

	interp := NewInterpreter(code)
	if err := interp.Run(); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	got, ok := interp.ReturnValue.(IntValue)
	if !ok || got.Val != 7 {
		t.Fatalf("ReturnValue = %v, want IntValue{7}", interp.ReturnValue)
	}
}

// TestLoopSum builds `total = 0; for i in range(10): total = total + i;
// return total` by hand and checks the loop-block frame correctly shares
// the enclosing frame's locals and instruction pointer across iterations.
func TestLoopSum(t *testing.T) {
	// SETUP_LOOP is itself an argument-carrying opcode (its operand, the
	// loop end's absolute offset here, is part of the fixed encoding even
	// though execute() never reads it) so it costs 3 bytes, not 1.
	//
	// FOR_ITER's operand is a RELATIVE delta added to the ip just past its
	// own 3-byte instruction (22): to land on POP_BLOCK at 38 that's
	// 38-22=16, not the absolute offset 38 itself.
	bytecode := []byte{
		byte(LOAD_CONST), 0x00, 0x00, // 0: total = 0
		byte(STORE_FAST), 0x00, 0x00, // 3: total
		byte(SETUP_LOOP), 38, 0x00, // 6: loop end at 38
		byte(LOAD_NAME), 0x00, 0x00, // 9: range
		byte(LOAD_CONST), 0x01, 0x00, // 12: 10
		byte(CALL_FUNCTION), 0x01, 0x00, // 15: argc=1
		byte(GET_ITER), // 18
		byte(FOR_ITER), 16, 0x00, // 19: -> loop end at 38 (22+16)
		byte(STORE_FAST), 0x01, 0x00, // 22: i
		byte(LOAD_FAST), 0x00, 0x00, // 25: total
		byte(LOAD_FAST), 0x01, 0x00, // 28: i
		byte(BINARY_ADD), // 31
		byte(STORE_FAST), 0x00, 0x00, // 32: total
		byte(JUMP_ABSOLUTE), 19, 0x00, // 35: -> FOR_ITER
		byte(POP_BLOCK), // 38
		byte(LOAD_FAST), 0x00, 0x00, // 39: total
		byte(RETURN_VALUE), // 42
	}
	code := program(
		bytecode,
		[]Value{IntValue{Val: 0}, IntValue{Val: 10}},
		[]string{"range"},
		[]string{"total", "i"},
		0,
	)

	interp := NewInterpreter(code)
	if err := interp.Run(); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	got, ok := interp.ReturnValue.(IntValue)
	if !ok || got.Val != 45 {
		t.Fatalf("ReturnValue = %v, want IntValue{45}", interp.ReturnValue)
	}
}

// TestClassMethodCall builds a trivial class with one no-arg method and
// checks LOAD_BUILD_CLASS, the bound-method push protocol, and instance
// construction end to end.
func TestClassMethodCall(t *testing.T) {
	getMethod := program(
		[]byte{
			byte(LOAD_CONST), 0x00, 0x00, // 7
			byte(RETURN_VALUE),
		},
		[]Value{IntValue{Val: 7}},
		nil, []string{"self"}, 1,
	)
	getMethod.Name = "get"

	classBody := program(
		[]byte{
			byte(LOAD_CONST), 0x00, 0x00, // 0: CodeValue{get}
			byte(MAKE_FUNCTION), 0x00, 0x00, // 3
			byte(STORE_NAME), 0x00, 0x00, // 6: "get"
			byte(LOAD_CONST), 0x01, 0x00, // 9: None
			byte(RETURN_VALUE), // 12
		},
		[]Value{CodeValue{Code: getMethod}, NoneValue{}},
		[]string{"get"}, nil, 0,
	)
	classBody.Name = "Box"

	module := program(
		[]byte{
			byte(LOAD_BUILD_CLASS), // 0
			byte(LOAD_CONST), 0x00, 0x00, // 1: CodeValue{classBody}
			byte(MAKE_FUNCTION), 0x00, 0x00, // 4
			byte(LOAD_CONST), 0x01, 0x00, // 7: "Box"
			byte(CALL_FUNCTION), 0x02, 0x00, // 10: argc=2
			byte(STORE_NAME), 0x00, 0x00, // 13: Box
			byte(LOAD_NAME), 0x00, 0x00, // 16: Box
			byte(CALL_FUNCTION), 0x00, 0x00, // 19: argc=0
			byte(STORE_FAST), 0x00, 0x00, // 22: box
			byte(LOAD_FAST), 0x00, 0x00, // 25: box
			byte(LOAD_ATTR), 0x01, 0x00, // 28: get
			byte(CALL_FUNCTION), 0x01, 0x00, // 31: argc=1 (receiver)
			byte(RETURN_VALUE), // 34
		},
		[]Value{CodeValue{Code: classBody}, StringValue{Val: "Box"}},
		[]string{"Box", "get"},
		[]string{"box"},
		0,
	)

	interp := NewInterpreter(module)
	if err := interp.Run(); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	got, ok := interp.ReturnValue.(IntValue)
	if !ok || got.Val != 7 {
		t.Fatalf("ReturnValue = %v, want IntValue{7}", interp.ReturnValue)
	}
	if _, ok := interp.Module.Classes["Box"]; !ok {
		t.Fatal("class Box was not installed into the module's class table")
	}
}

// TestJumpForwardIsRelative pins down JUMP_FORWARD's operand as a relative
// delta added to the ip, not an absolute target like JUMP_ABSOLUTE. The
// skipped instructions push a poison constant and pop it again. An absolute
// interpretation of this same operand would land on offset 4, inside
// JUMP_FORWARD's own argument bytes, where the argument byte 0x04 decodes
// as GET_ITER and fails on the integer below it, so Run would return an
// error instead of 30.
func TestJumpForwardIsRelative(t *testing.T) {
	bytecode := []byte{
		byte(LOAD_CONST), 0x00, 0x00, // 0: push 10
		byte(JUMP_FORWARD), 4, 0x00, // 3: -> 10 (6+4), skipping 6..9
		byte(LOAD_CONST), 0x01, 0x00, // 6: push 999 (never executed)
		byte(POP_TOP), // 9 (never executed)
		byte(LOAD_CONST), 0x02, 0x00, // 10: push 20
		byte(BINARY_ADD), // 13
		byte(RETURN_VALUE), // 14
	}
	code := program(
		bytecode,
		[]Value{IntValue{Val: 10}, IntValue{Val: 999}, IntValue{Val: 20}},
		nil, nil, 0,
	)

	interp := NewInterpreter(code)
	if err := interp.Run(); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	got, ok := interp.ReturnValue.(IntValue)
	if !ok || got.Val != 30 {
		t.Fatalf("ReturnValue = %v, want IntValue{30}", interp.ReturnValue)
	}
}

func TestStackUnderflowIsFatal(t *testing.T) {
	code := program([]byte{byte(BINARY_ADD)}, nil, nil, nil, 0)
	interp := NewInterpreter(code)
	if err := interp.Run(); err == nil {
		t.Fatal("expected a stack error popping BINARY_ADD operands from an empty stack")
	}
	if !interp.Halted {
		t.Fatal("an error mid-program must halt the interpreter")
	}
}

func TestUnboundNameProducesSuggestion(t *testing.T) {
	code := program(
		[]byte{byte(LOAD_NAME), 0x00, 0x00, byte(RETURN_VALUE)},
		nil, []string{"total"}, nil, 0,
	)
	interp := NewInterpreter(code)
	interp.Module.Globals["totals"] = IntValue{Val: 1}
	err := interp.Run()
	if err == nil {
		t.Fatal("expected an unbound name error")
	}
	if got := err.Error(); !contains(got, `did you mean "totals"`) {
		t.Fatalf("NameError message = %q, want a suggestion of \"totals\"", got)
	}
}

func TestNotImplementedOpcode(t *testing.T) {
	code := program([]byte{byte(YIELD_VALUE)}, nil, nil, nil, 0)
	interp := NewInterpreter(code)
	if err := interp.Run(); err == nil {
		t.Fatal("YIELD_VALUE is decodable but has no handler and must fail")
	}
}
