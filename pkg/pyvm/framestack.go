package pyvm

import "github.com/ssarangi/pyvym/pkg/pyerrors"

// FrameStack is the call stack: every FUNCTION call pushes a new
// ExecutionFrame, RETURN_VALUE pops it back off. Loop-block frames are
// pushed/popped the same way by SETUP_LOOP/POP_BLOCK; they are
// indistinguishable to the stack itself, only IsLoopBlock marks them.
type FrameStack struct {
	frames []*ExecutionFrame
}

func NewFrameStack() *FrameStack { return &FrameStack{} }

func (s *FrameStack) Push(f *ExecutionFrame) { s.frames = append(s.frames, f) }

func (s *FrameStack) Pop() (*ExecutionFrame, error) {
	if len(s.frames) == 0 {
		return nil, &pyerrors.StackError{Message: "pop from empty frame stack"}
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

func (s *FrameStack) Current() *ExecutionFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *FrameStack) Depth() int { return len(s.frames) }

// Backtrace lists every non-block frame, root (module) frame first.
func (s *FrameStack) Backtrace() []*ExecutionFrame {
	var out []*ExecutionFrame
	for _, f := range s.frames {
		if !f.IsLoopBlock {
			out = append(out, f)
		}
	}
	return out
}
