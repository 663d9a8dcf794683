package model

import (
	"time"
)

// Status represents the lifecycle state of a conversion task.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "INPROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
	StatusDeleted    Status = "DELETED"
)

// validTransitions is the task state machine. COMPLETED, ERROR and
// DELETED are terminal; DELETED is reachable from any non-terminal
// state through soft delete.
var validTransitions = map[Status][]Status{
	StatusCreated:    {StatusInProgress, StatusDeleted},
	StatusInProgress: {StatusCompleted, StatusError, StatusDeleted},
	StatusCompleted:  {},
	StatusError:      {},
	StatusDeleted:    {},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// CanTransition reports whether moving from s to next is allowed.
// Keeping the same status is always allowed (a no-op save).
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Task represents one requested image format conversion. It is a
// short-lived projection of the stored row; every read loads a fresh
// copy from the repository.
type Task struct {
	ID        int64      `json:"-"`
	UUID      string     `json:"uuid"`
	ImageID   string     `json:"image_id"`
	BucketID  string     `json:"bucket_id"`
	NewFormat string     `json:"new_format"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the task has been soft deleted.
func (t Task) Deleted() bool {
	return t.DeletedAt != nil
}
