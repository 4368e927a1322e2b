package output

import (
	"encoding/json"
	"time"
)

// KVStore is the persisted key-value store. Values are JSON documents.
// Get never fails: a missing or unreadable key reports ok=false.
type KVStore interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value any) error
	Delete(key string) error
	Keys() []string
}

// RunRecorder receives run and step outcomes for metrics.
type RunRecorder interface {
	WorkflowFinished(workflow, outcome string, d time.Duration)
	StepFinished(kind, outcome string, d time.Duration)
}

type NopRecorder struct{}

func (NopRecorder) WorkflowFinished(string, string, time.Duration) {}
func (NopRecorder) StepFinished(string, string, time.Duration)     {}
