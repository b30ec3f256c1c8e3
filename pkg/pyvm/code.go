package pyvm

// CodeObject is the unit the interpreter executes: a flat opcode stream,
// its constant pool, its name tables, and the metadata needed to map an
// instruction pointer back to a source line.
type CodeObject struct {
	Name         string
	Bytecode     []byte
	Constants    []Value
	Names        []string // co_names: globals/attrs referenced by name
	VarNames     []string // co_varnames: local variable names, args first
	ArgCount     int
	FirstLineNo  int
	Lnotab       []int // flat, alternating byte-delta/line-delta pairs
	Filename     string
	SourceLines  []string
}

// NewLineMap builds this Code Object's Line Map from its lnotab and source.
func (c *CodeObject) NewLineMap() *LineMap {
	return NewLineMap(c.FirstLineNo, c.Lnotab, c.SourceLines, c.Filename)
}
