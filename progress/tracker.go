package progress

import (
	"sync"
	"time"
)

// State is the lifecycle state of a tracked run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is a snapshot of one run for pollers.
type Status struct {
	RunID     string    `json:"run_id"`
	Topic     string    `json:"topic"`
	State     State     `json:"state"`
	Message   string    `json:"message"`
	History   []string  `json:"history"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps per-run message history in memory.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*Status
	now  func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*Status), now: time.Now}
}

// Start registers a run and returns a sink that records into it.
func (t *Tracker) Start(runID, topic string) Sink {
	now := t.now()
	t.mu.Lock()
	t.runs[runID] = &Status{
		RunID:     runID,
		Topic:     topic,
		State:     StateRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()

	return Func(func(msg string) {
		t.record(runID, msg)
	})
}

func (t *Tracker) record(runID, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.runs[runID]
	if !ok {
		return
	}
	st.Message = msg
	st.History = append(st.History, msg)
	st.UpdatedAt = t.now()
}

// Complete marks the run finished.
func (t *Tracker) Complete(runID string) {
	t.finish(runID, StateCompleted, "")
}

// Fail marks the run failed with err.
func (t *Tracker) Fail(runID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(runID, StateFailed, msg)
}

func (t *Tracker) finish(runID string, state State, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.runs[runID]
	if !ok {
		return
	}
	st.State = state
	st.Error = errMsg
	st.UpdatedAt = t.now()
}

// Status returns a copy of the run's status.
func (t *Tracker) Status(runID string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.runs[runID]
	if !ok {
		return Status{}, false
	}
	out := *st
	out.History = append([]string(nil), st.History...)
	return out, true
}

// Forget drops a run's status. A run still in flight keeps reporting into
// a no-op.
func (t *Tracker) Forget(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}
