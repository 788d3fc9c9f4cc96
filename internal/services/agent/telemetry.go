package agent

import (
	"sync"
)

// ToolCallRecord captures one tool invocation made during an agent run.
type ToolCallRecord struct {
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	Success bool           `json:"success"`
	Result  string         `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Telemetry records every tool call of one agent run. The validator checks
// assistant claims against it after the run completes.
type Telemetry struct {
	mutex sync.Mutex
	calls []ToolCallRecord
}

// NewTelemetry returns an empty telemetry recorder.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Record appends one tool call record.
func (t *Telemetry) Record(rec ToolCallRecord) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.calls = append(t.calls, rec)
}

// Calls returns a copy of all recorded tool calls.
func (t *Telemetry) Calls() []ToolCallRecord {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	out := make([]ToolCallRecord, len(t.calls))
	copy(out, t.calls)
	return out
}

// Called reports whether the named tool was invoked at all.
func (t *Telemetry) Called(name string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, c := range t.calls {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Succeeded reports whether the named tool was invoked and returned success
// at least once.
func (t *Telemetry) Succeeded(name string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, c := range t.calls {
		if c.Name == name && c.Success {
			return true
		}
	}
	return false
}

// FailedOnly reports whether the named tool was invoked but never succeeded.
func (t *Telemetry) FailedOnly(name string) bool {
	return t.Called(name) && !t.Succeeded(name)
}
