// Package pyerrors defines the typed error values produced by the
// interpreter, the debugger, and the command parser.
package pyerrors

import "fmt"

// Kind classifies a failure the way the interpreter's error taxonomy does:
// decode/stack/type errors are always fatal to the running program; name
// errors are fatal to the program but are reported to an attached debugger
// rather than killing it; command errors never touch the program at all.
type Kind string

const (
	KindDecode  Kind = "decode"
	KindStack   Kind = "stack"
	KindName    Kind = "name"
	KindType    Kind = "type"
	KindCommand Kind = "command"
)

// DecodeError reports an invalid opcode or a truncated argument read.
type DecodeError struct {
	IP      int
	Opcode  byte
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at ip=%d (opcode 0x%02x): %s", e.IP, e.Opcode, e.Message)
}

func (e *DecodeError) Kind() Kind { return KindDecode }

// NotImplementedError reports a recognized but unsupported opcode -- the
// decoder knows its argument width but the interpreter has no handler for
// it. It is fatal to the running program, exactly like a DecodeError.
type NotImplementedError struct {
	IP     int
	Opcode string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("opcode %s at ip=%d is not implemented", e.Opcode, e.IP)
}

func (e *NotImplementedError) Kind() Kind { return KindDecode }

// StackError reports an underflow or an unbalanced pop/popn.
type StackError struct {
	IP      int
	Message string
}

func (e *StackError) Error() string {
	return fmt.Sprintf("stack error at ip=%d: %s", e.IP, e.Message)
}

func (e *StackError) Kind() Kind { return KindStack }

// NameError reports a local or global name that resolved to nothing.
type NameError struct {
	Name       string
	Global     bool
	Suggestion string
}

func (e *NameError) Error() string {
	scope := "local"
	if e.Global {
		scope = "global"
	}
	msg := fmt.Sprintf("unbound %s name %q", scope, e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *NameError) Kind() Kind { return KindName }

// TypeError reports an operation applied to an incompatible Value.
type TypeError struct {
	Operation string
	Got       string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: %s does not support operand of type %s", e.Operation, e.Got)
}

func (e *TypeError) Kind() Kind { return KindType }

// CommandError reports a malformed debugger command; it never reaches the
// running program and the debugger returns to its prompt after reporting it.
type CommandError struct {
	Input      string
	Message    string
	Suggestion string

	// Unrecognized marks input that doesn't match the fixed grammar at
	// all, as opposed to a recognized command with a malformed argument
	// (e.g. "set bp abc"). The debugger's REPL prints the latter inline
	// and silently discards the former.
	Unrecognized bool
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command error: %s (%q)", e.Message, e.Input)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" -- did you mean %q?", e.Suggestion)
	}
	return msg
}

func (e *CommandError) Kind() Kind { return KindCommand }

// Suggest returns the closest candidate to want by edit distance, or ""
// if candidates is empty or nothing is within a reasonable distance.
func Suggest(want string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(want, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist < 0 || bestDist > len(want)/2+1 {
		return ""
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
