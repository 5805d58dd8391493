package task

// Push-channel event payloads. The registry is the only producer; the
// websocket hub fans them out to every connected client as JSON.

const (
	EventProgress  = "task_progress"
	EventStatus    = "task_status"
	EventCompleted = "task_completed"
	EventError     = "task_error"
)

type ProgressEvent struct {
	Type               string   `json:"type"`
	TaskID             string   `json:"task_id"`
	Progress           int      `json:"progress"`
	CurrentStep        int      `json:"current_step"`
	TotalSteps         int      `json:"total_steps"`
	Message            string   `json:"message,omitempty"`
	EstimatedRemaining *float64 `json:"estimated_remaining,omitempty"`
	Status             Status   `json:"status"`
}

type StatusEvent struct {
	Type    string `json:"type"`
	TaskID  string `json:"task_id"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type CompletedEvent struct {
	Type       string `json:"type"`
	TaskID     string `json:"task_id"`
	OutputFile string `json:"output_file"`
	Message    string `json:"message,omitempty"`
}

type ErrorEvent struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

func progressEvent(t *Task) ProgressEvent {
	return ProgressEvent{
		Type:               EventProgress,
		TaskID:             t.ID,
		Progress:           t.Progress,
		CurrentStep:        t.CurrentStep,
		TotalSteps:         t.TotalSteps,
		Message:            t.Message,
		EstimatedRemaining: t.EstimatedRemaining,
		Status:             t.Status,
	}
}

// Notifier receives registry events for delivery to connected clients.
// Implementations must not block: the registry calls Publish while
// holding its lock.
type Notifier interface {
	Publish(event interface{})
}
