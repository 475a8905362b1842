package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one generative call made on
// behalf of a component (ingredient completion, plan review).
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// MetaSince builds an AgentMeta whose latency is measured from start.
func MetaSince(agent string, usage TokenUsage, start time.Time) AgentMeta {
	return AgentMeta{AgentName: agent, Usage: usage, Latency: time.Since(start)}
}

// MetaRecorder persists AgentMeta. Implementations must be safe for
// concurrent use.
type MetaRecorder interface {
	RecordMeta(meta AgentMeta) error
}
