package models

import "time"

// TaskKind identifies the provider operation behind an AsyncTask
type TaskKind string

const (
	TaskKindDomainResolve  TaskKind = "domain-resolve"
	TaskKindProspectSearch TaskKind = "prospect-search"
	TaskKindEmailEnrich    TaskKind = "email-enrich"
)

// TaskStatus is the lifecycle state of an AsyncTask
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusTimedOut  TaskStatus = "timed-out"
)

// AsyncTask tracks one provider-side operation from start to a terminal state
type AsyncTask struct {
	TaskHash  string
	Kind      TaskKind
	StartedAt time.Time
	Status    TaskStatus
}

// Terminal reports whether the task will not be polled again
func (t *AsyncTask) Terminal() bool {
	return t.Status != TaskStatusPending
}
