package pyvm

import "testing"

func testLineMap() *LineMap {
	// Four source lines, covering byte ranges [0,6) [6,12) [12,22) [22,26).
	lnotab := []int{6, 1, 6, 1, 10, 1, 4, 0}
	source := []string{"a = 1", "b = 2", "c = a + b", "return c"}
	return NewLineMap(1, lnotab, source, "test.py")
}

func TestLineNumberBoundaries(t *testing.T) {
	m := testLineMap()
	cases := []struct {
		ip   int
		want int
	}{
		{0, 1}, {5, 1},
		{6, 2}, {11, 2},
		{12, 3}, {21, 3},
		{22, 4}, {25, 4},
	}
	for _, c := range cases {
		if got := m.LineNumber(c.ip); got != c.want {
			t.Errorf("LineNumber(%d) = %d, want %d", c.ip, got, c.want)
		}
	}
}

func TestLineNumberNegativeIsInvalid(t *testing.T) {
	m := testLineMap()
	if got := m.LineNumber(-1); got != InvalidLine {
		t.Errorf("LineNumber(-1) = %d, want InvalidLine", got)
	}
}

func TestSourceSurroundingMarksTargetLine(t *testing.T) {
	m := testLineMap()
	out := m.SourceSurrounding(3, 5)
	if want := " ---> 3\tc = a + b\n"; !contains(out, want) {
		t.Errorf("SourceSurrounding(3, 5) = %q, want it to contain %q", out, want)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
