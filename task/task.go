package task

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

type Operation string

const (
	OpConcatenate      Operation = "concatenate"
	OpAddAudio         Operation = "add_audio"
	OpAddSubtitle      Operation = "add_subtitle"
	OpCreateFinalVideo Operation = "create_final_video"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpConcatenate, OpAddAudio, OpAddSubtitle, OpCreateFinalVideo:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unsupported operation: %q", s)
}

// Task is one submitted media-composition job. The registry owns every
// instance; callers only ever see value copies taken under the lock.
type Task struct {
	ID          string    `json:"id"`
	Operation   Operation `json:"operation"`
	Status      Status    `json:"status"`
	TotalSteps  int       `json:"total_steps"`
	CurrentStep int       `json:"current_step"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	StartTime   time.Time `json:"start_time"`
	// EstimatedRemaining is seconds of work left, linearly extrapolated
	// from elapsed time per step. Nil until the first step completes.
	EstimatedRemaining *float64 `json:"estimated_remaining,omitempty"`

	cancelRequested bool
	paused          bool
}
