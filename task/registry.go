package task

import (
	"errors"
	"sync"
	"time"
)

var ErrDuplicateTask = errors.New("task id already exists")

// Registry owns the task map. Every mutation happens under one mutex,
// including the broadcast enqueue, so events for a task always carry a
// consistent snapshot and go out in non-decreasing step order. The
// actual network writes happen on the notifier's side, off the lock.
type Registry struct {
	mu           sync.Mutex
	tasks        map[string]*Task
	notifier     Notifier
	pollInterval time.Duration
}

func NewRegistry(notifier Notifier, pollInterval time.Duration) *Registry {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Registry{
		tasks:        make(map[string]*Task),
		notifier:     notifier,
		pollInterval: pollInterval,
	}
}

// SetNotifier installs the push channel after construction, breaking
// the registry/hub creation cycle in main. Call it before the first
// Create.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

func (r *Registry) publish(event interface{}) {
	if r.notifier != nil {
		r.notifier.Publish(event)
	}
}

// Create inserts a new running task. Callers must supply a fresh unique
// id per submission.
func (r *Registry) Create(id string, op Operation, totalSteps int) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return Task{}, ErrDuplicateTask
	}
	t := &Task{
		ID:         id,
		Operation:  op,
		Status:     StatusRunning,
		TotalSteps: totalSteps,
		StartTime:  time.Now(),
	}
	r.tasks[id] = t
	return *t, nil
}

// SetTotalSteps fixes the step budget once at job start, before the
// first progress update of the run.
func (r *Registry) SetTotalSteps(id string, totalSteps int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.CurrentStep > 0 || totalSteps <= 0 {
		return
	}
	t.TotalSteps = totalSteps
}

// UpdateProgress records a step advance and broadcasts it. Unknown ids
// are a no-op so late calls after cleanup stay harmless; terminal tasks
// keep their step frozen.
func (r *Registry) UpdateProgress(id string, currentStep int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}

	if currentStep > t.CurrentStep {
		if currentStep > t.TotalSteps {
			currentStep = t.TotalSteps
		}
		t.CurrentStep = currentStep
	}
	if t.TotalSteps > 0 {
		t.Progress = t.CurrentStep * 100 / t.TotalSteps
	}
	if message != "" {
		t.Message = message
	}
	// Naive linear extrapolation, no smoothing or windowing.
	if t.CurrentStep > 0 {
		elapsed := time.Since(t.StartTime)
		perStep := elapsed / time.Duration(t.CurrentStep)
		remaining := (perStep * time.Duration(t.TotalSteps-t.CurrentStep)).Seconds()
		t.EstimatedRemaining = &remaining
	}

	r.publish(progressEvent(t))
}

// SetStatus overwrites status and message, refusing only to leave a
// terminal state. Transition discipline beyond that lives in the job
// runner and the request helpers below.
func (r *Registry) SetStatus(id string, status Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatusLocked(id, status, message)
}

func (r *Registry) setStatusLocked(id string, status Status, message string) {
	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = status
	if message != "" {
		t.Message = message
	}
	r.publish(StatusEvent{Type: EventStatus, TaskID: id, Status: status, Message: t.Message})
}

// RequestCancel latches the cancel flag and moves the task to its
// terminal cancelled state. Cancel dominates pause; already-terminal
// tasks and unknown ids are silent no-ops.
func (r *Registry) RequestCancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.cancelRequested = true
	r.setStatusLocked(id, StatusCancelled, "Task cancelled")
}

// RequestPause suspends a running task at its next step boundary.
// Pausing a task that is not running is a silent no-op, which keeps
// racing control messages from multiple client tabs harmless.
func (r *Registry) RequestPause(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != StatusRunning {
		return
	}
	t.paused = true
	r.setStatusLocked(id, StatusPaused, "Task paused")
}

// RequestResume lifts a pause. Resuming a non-paused task is a silent
// no-op.
func (r *Registry) RequestResume(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPaused {
		return
	}
	t.paused = false
	r.setStatusLocked(id, StatusRunning, "Task resumed")
}

// Complete marks the task finished and announces the output artifact.
func (r *Registry) Complete(id, outputFile, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusCompleted
	t.Message = message
	r.publish(CompletedEvent{Type: EventCompleted, TaskID: id, OutputFile: outputFile, Message: message})
}

// Fail marks the task as errored with the collaborator failure text.
func (r *Registry) Fail(id, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusError
	t.Message = errMsg
	r.publish(ErrorEvent{Type: EventError, TaskID: id, Error: errMsg})
}

// IsCancelled is safe from any goroutine and false for unknown ids.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return ok && t.cancelRequested
}

// IsPaused is safe from any goroutine and false for unknown ids.
func (r *Registry) IsPaused(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return ok && t.paused
}

// AwaitUnpaused blocks the calling job goroutine while the task is
// paused and not cancelled. It polls at the configured interval rather
// than using a condition variable, so responsiveness is bounded by the
// poll interval.
func (r *Registry) AwaitUnpaused(id string) {
	if !r.IsPaused(id) || r.IsCancelled(id) {
		return
	}
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !r.IsPaused(id) || r.IsCancelled(id) {
			return
		}
	}
}

// Get returns a snapshot copy of the task.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	return out
}
