package domain

import "time"

// JobState represents the lifecycle state of an asynchronous job.
// Transitions are one-directional: Queued → Running → Completed | Failed.
// A cancelled job moves from Queued directly to Failed.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobType identifies the kind of work a job carries.
type JobType string

const (
	JobTypeIngest         JobType = "ingest"
	JobTypeBatchEmbed     JobType = "batch_embed"
	JobTypeLongCompletion JobType = "long_completion"
)

// Job is a unit of asynchronous work owned by the job queue for its whole
// lifecycle. Result and Error are populated only in terminal states.
type Job struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Type        JobType    `gorm:"type:text;not null;index" json:"type"`
	Priority    Priority   `gorm:"type:text;not null" json:"priority"`
	State       JobState   `gorm:"type:text;default:queued;index" json:"state"`
	Params      *Request   `gorm:"serializer:json" json:"params,omitempty"`
	Result      *Response  `gorm:"serializer:json" json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// JobStatus is the externally visible view of a job. Non-terminal jobs never
// expose a result or error.
type JobStatus struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	State       JobState   `json:"state"`
	Result      *Response  `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Status projects the job into its externally visible form.
func (j *Job) Status() *JobStatus {
	st := &JobStatus{
		ID:          j.ID,
		Type:        j.Type,
		State:       j.State,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.State.Terminal() {
		st.Result = j.Result
		st.Error = j.Error
	}
	return st
}
