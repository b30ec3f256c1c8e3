package pytrace

import (
	"context"
	"testing"
)

func TestSanitizeStripsNewlines(t *testing.T) {
	got := sanitize("compute\r\nsum")
	if got != "computesum" {
		t.Errorf("sanitize(%q) = %q, want %q", "compute\r\nsum", got, "computesum")
	}
}

func TestSanitizeLeavesOrdinaryNamesUnchanged(t *testing.T) {
	if got := sanitize("Box.get"); got != "Box.get" {
		t.Errorf("sanitize(%q) = %q, want it unchanged", "Box.get", got)
	}
}

func TestNewAndStartSpanDoNotError(t *testing.T) {
	tracer, shutdown, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdown()

	end := tracer.StartSpan("compute")
	end()
}
