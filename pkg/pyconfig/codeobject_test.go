package pyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ssarangi/pyvym/pkg/pyvm"
)

const sampleYAML = `
name: "<module>"
bytecode: "400000" # LOAD_CONST 0
constants:
  - type: int
    int: 7
names: []
var_names: []
arg_count: 0
first_lineno: 1
lnotab: []
filename: sample.yaml
source:
  - "return 7"
`

func TestLoadCodeObjectDecodesScalarConstants(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	code, err := LoadCodeObject(path)
	if err != nil {
		t.Fatalf("LoadCodeObject: %v", err)
	}
	if code.Name != "<module>" {
		t.Errorf("Name = %q, want <module>", code.Name)
	}
	if len(code.Bytecode) != 3 || code.Bytecode[0] != 0x40 {
		t.Fatalf("Bytecode = %v, want [0x40 0x00 0x00]", code.Bytecode)
	}
	if len(code.Constants) != 1 {
		t.Fatalf("Constants = %v, want one entry", code.Constants)
	}
	got, ok := code.Constants[0].(pyvm.IntValue)
	if !ok || got.Val != 7 {
		t.Fatalf("Constants[0] = %v, want IntValue{7}", code.Constants[0])
	}
}

func TestCodeConstantRecursesIntoNestedCode(t *testing.T) {
	nested := codeDoc{
		Name:        "inner",
		BytecodeHex: "06", // RETURN_VALUE
		FirstLineNo: 1,
	}
	spec := constSpec{Type: "code", Code: &nested}

	v, err := spec.toValue()
	if err != nil {
		t.Fatalf("toValue: %v", err)
	}
	cv, ok := v.(pyvm.CodeValue)
	if !ok {
		t.Fatalf("toValue() = %v, want a CodeValue", v)
	}
	if cv.Code.Name != "inner" {
		t.Errorf("nested Code.Name = %q, want inner", cv.Code.Name)
	}
}

func TestConstSpecUnknownTypeErrors(t *testing.T) {
	spec := constSpec{Type: "nope"}
	if _, err := spec.toValue(); err == nil {
		t.Fatal("toValue() with an unrecognized type tag should error")
	}
}
