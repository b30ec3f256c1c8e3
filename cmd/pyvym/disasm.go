package main

import (
	"fmt"
	"io"

	"github.com/ssarangi/pyvym/pkg/pyvm"
)

// Disassemble prints the decoded opcode stream of code (and every nested
// function/class body reachable from its constant pool) for diagnostics
// only; nothing in the interpreter or debugger consults this output.
func Disassemble(w io.Writer, code *pyvm.CodeObject) {
	disassembleOne(w, code, 0)
}

func disassembleOne(w io.Writer, code *pyvm.CodeObject, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%s:\n", indent, code.Name)
	lm := code.NewLineMap()
	ip := 0
	for ip < len(code.Bytecode) {
		op := pyvm.Opcode(code.Bytecode[ip])
		line := lm.LineNumber(ip)
		if op.HasArg() {
			if ip+2 >= len(code.Bytecode) {
				fmt.Fprintf(w, "%s  %4d [line %d] %s <truncated>\n", indent, ip, line, op.Name())
				break
			}
			arg := int(code.Bytecode[ip+1]) | int(code.Bytecode[ip+2])<<8
			fmt.Fprintf(w, "%s  %4d [line %d] %-22s %d\n", indent, ip, line, op.Name(), arg)
			ip += 3
		} else {
			fmt.Fprintf(w, "%s  %4d [line %d] %s\n", indent, ip, line, op.Name())
			ip++
		}
	}
	for _, c := range code.Constants {
		if cv, ok := c.(pyvm.CodeValue); ok {
			disassembleOne(w, cv.Code, depth+1)
		}
	}
}
