package app

import (
	"fmt"
	"os"
	"time"
)

// Operation identifies one CLI invocation. Its ID tags every log line and
// its Origin tags every audit entry written during the invocation.
type Operation struct {
	ID      string
	Command string
	Host    string
}

// NewOperation creates an operation for command, stamped with the current
// UTC time and the local hostname.
func NewOperation(command string) *Operation {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return &Operation{
		ID:      time.Now().UTC().Format("20060102T150405Z"),
		Command: command,
		Host:    host,
	}
}

// Origin returns "cli:<host>:<command>".
func (op *Operation) Origin() string {
	return fmt.Sprintf("cli:%s:%s", op.Host, op.Command)
}
