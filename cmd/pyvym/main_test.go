package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssarangi/pyvym/pkg/pyvm"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		v    pyvm.Value
		want int
	}{
		{"int return value", pyvm.IntValue{Val: 45}, 45},
		{"int return value at the scenario boundary", pyvm.IntValue{Val: 103}, 103},
		{"none return value", pyvm.NoneValue{}, 0},
		{"string return value", pyvm.StringValue{Val: "done"}, 0},
		{"nil value", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.v))
		})
	}
}

func TestTextOf(t *testing.T) {
	tests := []struct {
		name string
		v    pyvm.Value
		want string
	}{
		{"nil value", nil, "None"},
		{"int", pyvm.IntValue{Val: 7}, "7"},
		{"string", pyvm.StringValue{Val: "hi"}, "hi"},
		{"none value", pyvm.NoneValue{}, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textOf(tt.v))
		})
	}
}
