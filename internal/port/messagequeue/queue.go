// Package messagequeue defines the message queue port (interface) and the
// analysis event schemas.
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain processes pending messages, then closes the connection.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by deploypilot. All live under one JetStream stream.
const (
	SubjectAnalysisRequested = "analysis.requested" // asynchronous analysis requests
	SubjectAnalysisCompleted = "analysis.completed" // one per finished analysis
	SubjectAnalysisFailed    = "analysis.failed"    // async requests that could not be analyzed
)

// AnalysisRequestedPayload is the schema for analysis.requested messages.
type AnalysisRequestedPayload struct {
	RequestID string `json:"request_id"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Branch    string `json:"branch,omitempty"`
	Refresh   bool   `json:"refresh,omitempty"`
}

// AnalysisCompletedPayload is the schema for analysis.completed messages.
type AnalysisCompletedPayload struct {
	RecordID            string `json:"record_id,omitempty"`
	RequestID           string `json:"request_id,omitempty"`
	Owner               string `json:"owner"`
	Repo                string `json:"repo"`
	Branch              string `json:"branch,omitempty"`
	ProjectType         string `json:"project_type"`
	RecommendedPlatform string `json:"recommended_platform"`
	Score               int    `json:"score"`
}

// AnalysisFailedPayload is the schema for analysis.failed messages.
type AnalysisFailedPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Branch    string `json:"branch,omitempty"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}
