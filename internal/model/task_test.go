package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusCreated, StatusInProgress, true},
		{StatusCreated, StatusDeleted, true},
		{StatusCreated, StatusCompleted, false},
		{StatusCreated, StatusError, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusError, true},
		{StatusInProgress, StatusDeleted, true},
		{StatusInProgress, StatusCreated, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusDeleted, false},
		{StatusError, StatusInProgress, false},
		{StatusError, StatusDeleted, false},
		{StatusDeleted, StatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCanTransitionSameStatus(t *testing.T) {
	for _, s := range []Status{StatusCreated, StatusInProgress, StatusCompleted, StatusError, StatusDeleted} {
		assert.True(t, s.CanTransition(s), "re-saving %s must be a no-op, not a violation", s)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCreated.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, Status("RUNNING").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusCreated.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusDeleted.Terminal())
}

func TestTaskDeleted(t *testing.T) {
	var task Task
	assert.False(t, task.Deleted())

	now := time.Now()
	task.DeletedAt = &now
	assert.True(t, task.Deleted())
}
