package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission status enums. approved and rejected are terminal.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

type Submission struct {
	ID       uuid.UUID `json:"id"`
	TaskID   uuid.UUID `json:"task_id"`
	WorkerID uuid.UUID `json:"worker_id"`
	Details  string    `json:"details"`
	Status   string    `json:"status"`
	// PayableAmount is snapshotted from the task at submit time and never
	// changes, even if the task price is edited afterwards.
	PayableAmount int64      `json:"payable_amount"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}
