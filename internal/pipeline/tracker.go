package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker is the in-memory run registry. It is safe for concurrent polling
// while runs advance.
type Tracker struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*Run
	order []uuid.UUID
}

func NewTracker() *Tracker {
	return &Tracker{runs: make(map[uuid.UUID]*Run)}
}

// Add registers a run. Called once per run by the orchestrator.
func (t *Tracker) Add(run *Run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.runs[run.ID]; exists {
		return
	}
	t.runs[run.ID] = run
	t.order = append(t.order, run.ID)
}

// Get returns the run for an id.
func (t *Tracker) Get(id uuid.UUID) (*Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	return run, ok
}

// List returns all tracked runs in insertion order.
func (t *Tracker) List() []*Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Run, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.runs[id])
	}
	return out
}

// Evict removes a run from the registry. The run itself stays valid for
// holders of the pointer.
func (t *Tracker) Evict(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.runs[id]; !ok {
		return false
	}
	delete(t.runs, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Len reports the number of tracked runs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}
