package event

import (
	"time"

	"reachcheck/internal/models"
)

// Type classifies lifecycle notifications emitted by the pipeline.
type Type string

const (
	TypeValidationStarted   Type = "validation_started"
	TypeCacheHit            Type = "cache_hit"
	TypeValidationCompleted Type = "validation_completed"
	TypeValidationError     Type = "validation_error"
	TypeBatchStarted        Type = "batch_started"
	TypeBatchProgress       Type = "batch_progress"
	TypeBatchCompleted      Type = "batch_completed"
	TypeHealthDegraded      Type = "health_degraded"
	TypeHealthCritical      Type = "health_critical"
	TypePluginError         Type = "plugin_error"
)

// Event is one lifecycle notification. Keep it transport-agnostic so sinks
// (analytics, Kafka, plugins) can fan out.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Number    string `json:"number,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Error     string `json:"error,omitempty"`

	// Result carries the full result object where applicable
	// (validation_completed, cache_hit).
	Result *models.ValidationResult `json:"result,omitempty"`

	// Batch progress fields, chunk granularity.
	BatchSize  int `json:"batch_size,omitempty"`
	ChunkIndex int `json:"chunk_index,omitempty"`
	ChunkCount int `json:"chunk_count,omitempty"`

	// Detail carries free-form context (plugin name, health rate).
	Detail string `json:"detail,omitempty"`
}
