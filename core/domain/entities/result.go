package entities

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the outcome of a command invocation. It reflects
// only whether the command was sent and a response received; parse
// failures do not turn a success into a failure.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// CommandExecutionResult records one command invocation against one
// device. Immutable once returned; field names are part of the
// persistence contract.
type CommandExecutionResult struct {
	DeviceID    uuid.UUID           `json:"device_id"`
	Hostname    string              `json:"hostname"`
	Command     string              `json:"command"`
	Status      ExecutionStatus     `json:"status"`
	RawOutput   string              `json:"raw_output"`
	ParsedData  []map[string]string `json:"parsed_data,omitempty"`
	ParseMethod string              `json:"parse_method,omitempty"`
	ParseError  string              `json:"parse_error,omitempty"`
	Elapsed     time.Duration       `json:"elapsed_time"`
	Error       string              `json:"error,omitempty"`
}

// Failed reports whether the command never completed.
func (r CommandExecutionResult) Failed() bool {
	return r.Status == ExecutionFailed
}
