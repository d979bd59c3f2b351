// Package kafka carries the asynchronous analysis lifecycle: the API server
// publishes a request event when a batch is submitted, the worker consumes
// it, runs the pipeline, and publishes a completion or failure event.
package kafka

import (
	"encoding/json"
	"time"
)

// Topic constants. One topic per lifecycle transition keeps consumers simple
// and allows independent retention policies.
const (
	TopicAnalysisRequested = "termlens.analysis.requested"
	TopicAnalysisCompleted = "termlens.analysis.completed"
	TopicAnalysisFailed    = "termlens.analysis.failed"
)

// Event type constants carried in the envelope.
const (
	EventAnalysisRequested = "analysis.requested"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// EventEnvelope standardizes event messages across topics.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// AnalysisRequestedPayload asks the worker to execute a pending run.
type AnalysisRequestedPayload struct {
	RunID   string `json:"run_id"`
	BatchID string `json:"batch_id"`
}

// AnalysisCompletedPayload announces a finished run.
type AnalysisCompletedPayload struct {
	RunID   string `json:"run_id"`
	Partial bool   `json:"partial"`
}

// AnalysisFailedPayload announces a failed run with its terminal reason.
type AnalysisFailedPayload struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}
