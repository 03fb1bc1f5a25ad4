package app

import (
	"strings"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{name: "release", command: "doc release"},
		{name: "empty command", command: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.command)

			if op.Command != tt.command {
				t.Errorf("Command = %q, want %q", op.Command, tt.command)
			}
			if op.Host == "" {
				t.Error("Host is empty")
			}
			if _, err := time.Parse("20060102T150405Z", op.ID); err != nil {
				t.Errorf("ID = %q is not a UTC timestamp: %v", op.ID, err)
			}
		})
	}
}

func TestOperation_Origin(t *testing.T) {
	op := &Operation{ID: "20250607T080000Z", Command: "doc submit", Host: "exam-office"}

	if got := op.Origin(); got != "cli:exam-office:doc submit" {
		t.Errorf("Origin() = %q", got)
	}
	if !strings.HasPrefix(NewOperation("x").Origin(), "cli:") {
		t.Error("Origin() missing cli prefix")
	}
}
