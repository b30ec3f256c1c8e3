// Package pyconfig loads a Code Object from its on-disk YAML form -- the
// stand-in for the out-of-scope compiler front end -- and declares the
// run/debug settings structs. It reads no flags, environment variables or
// settings files; the CLI parses its own flags.
package pyconfig

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ssarangi/pyvym/pkg/pyvm"
)

// constSpec is one entry of a Code Object's constant pool as written in
// YAML: a type tag plus whichever of the typed fields applies.
type constSpec struct {
	Type  string  `yaml:"type"`
	Int   int64   `yaml:"int,omitempty"`
	Float float64 `yaml:"float,omitempty"`
	Str   string  `yaml:"str,omitempty"`
	Bool  bool    `yaml:"bool,omitempty"`
	Code  *codeDoc `yaml:"code,omitempty"`
}

func (c constSpec) toValue() (pyvm.Value, error) {
	switch c.Type {
	case "int":
		return pyvm.IntValue{Val: c.Int}, nil
	case "float":
		return pyvm.FloatValue{Val: c.Float}, nil
	case "str":
		return pyvm.StringValue{Val: c.Str}, nil
	case "bool":
		return pyvm.BoolValue{Val: c.Bool}, nil
	case "none":
		return pyvm.NoneValue{}, nil
	case "code":
		if c.Code == nil {
			return nil, fmt.Errorf("constant tagged 'code' has no code document")
		}
		nested, err := c.Code.toCodeObject()
		if err != nil {
			return nil, err
		}
		return pyvm.CodeValue{Code: nested}, nil
	default:
		return nil, fmt.Errorf("unknown constant type %q", c.Type)
	}
}

// codeDoc is the YAML document shape for one Code Object, nested
// recursively for function and class bodies.
type codeDoc struct {
	Name        string      `yaml:"name"`
	BytecodeHex string      `yaml:"bytecode"`
	Constants   []constSpec `yaml:"constants"`
	Names       []string    `yaml:"names"`
	VarNames    []string    `yaml:"var_names"`
	ArgCount    int         `yaml:"arg_count"`
	FirstLineNo int         `yaml:"first_lineno"`
	Lnotab      []int       `yaml:"lnotab"`
	Filename    string      `yaml:"filename"`
	Source      []string    `yaml:"source"`
}

func (d *codeDoc) toCodeObject() (*pyvm.CodeObject, error) {
	raw, err := hex.DecodeString(d.BytecodeHex)
	if err != nil {
		return nil, fmt.Errorf("decoding bytecode for %q: %w", d.Name, err)
	}
	consts := make([]pyvm.Value, len(d.Constants))
	for i, c := range d.Constants {
		v, err := c.toValue()
		if err != nil {
			return nil, fmt.Errorf("constant %d of %q: %w", i, d.Name, err)
		}
		consts[i] = v
	}
	return &pyvm.CodeObject{
		Name:        d.Name,
		Bytecode:    raw,
		Constants:   consts,
		Names:       d.Names,
		VarNames:    d.VarNames,
		ArgCount:    d.ArgCount,
		FirstLineNo: d.FirstLineNo,
		Lnotab:      d.Lnotab,
		Filename:    d.Filename,
		SourceLines: d.Source,
	}, nil
}

// LoadCodeObject reads and decodes a YAML Code Object document from path.
func LoadCodeObject(path string) (*pyvm.CodeObject, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc codeDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.toCodeObject()
}
