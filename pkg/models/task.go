package models

import "time"

// TaskType is a post-call unit-of-work kind. The pipeline routes on it
// exhaustively; an unknown type is rejected at enqueue time.
type TaskType string

const (
	TaskTranscription   TaskType = "transcription"
	TaskContentAnalysis TaskType = "content_analysis"
	TaskEffectiveness   TaskType = "effectiveness"
	TaskSummary         TaskType = "summary"
	TaskFullAnalysis    TaskType = "full_analysis"
)

// Valid reports whether t is a routable task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTranscription, TaskContentAnalysis, TaskEffectiveness, TaskSummary, TaskFullAnalysis:
		return true
	}
	return false
}

// Priority orders queue draining: high preempts normal preempts low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Valid reports whether p names a queue.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

// Well-known QueuedTask argument keys.
const (
	ArgBatchID = "batch_id"
	ArgUserID  = "user_id"
)

// QueuedTask is one serialized post-call work item.
type QueuedTask struct {
	ID        string            `json:"id"`
	CallID    string            `json:"call_id"`
	Type      TaskType          `json:"type"`
	Priority  Priority          `json:"priority"`
	CreatedAt time.Time         `json:"created_at"`
	Args      map[string]string `json:"args,omitempty"`

	// Retries counts how many times this task has been re-enqueued after
	// failure; only high-priority tasks retry.
	Retries int `json:"retries,omitempty"`
}

// Task terminal statuses.
const (
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// TaskResult is published on the result channel when a task finishes.
type TaskResult struct {
	TaskID      string         `json:"task_id"`
	CallID      string         `json:"call_id"`
	Type        TaskType       `json:"type"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Batch job statuses.
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// BatchJob tracks aggregate completion of a multi-call analysis request.
type BatchJob struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	CallIDs        []string   `json:"call_ids"`
	AnalysisTypes  []TaskType `json:"analysis_types"`
	Priority       Priority   `json:"priority"`
	TotalCalls     int        `json:"total_calls"`
	CompletedCalls int        `json:"completed_calls"`
	Status         string     `json:"status"`
	CallbackURL    string     `json:"callback_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
