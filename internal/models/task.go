package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status enums. A task leaves "open" exactly once: either the last slot
// is consumed by an approved submission (completed) or the buyer cancels it.
const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
	TaskStatusCancelled = "cancelled"
)

type Task struct {
	ID               uuid.UUID `json:"id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	Title            string    `json:"title"`
	Detail           string    `json:"detail"`
	PayablePerWorker int64     `json:"payable_per_worker"`
	// SlotCount is the number of slots the task was created with; OpenSlots
	// counts those not yet filled by an approved submission.
	SlotCount int       `json:"slot_count"`
	OpenSlots int       `json:"open_slots"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
