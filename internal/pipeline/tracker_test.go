package pipeline

import (
	"testing"

	"github.com/google/uuid"
)

func TestTrackerInsertionOrder(t *testing.T) {
	tr := NewTracker()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		run := newRun(validRequest())
		tr.Add(run)
		ids = append(ids, run.ID)
	}
	if tr.Len() != 5 {
		t.Fatalf("Len = %d, want 5", tr.Len())
	}
	listed := tr.List()
	if len(listed) != 5 {
		t.Fatalf("List returned %d runs, want 5", len(listed))
	}
	for i, run := range listed {
		if run.ID != ids[i] {
			t.Fatalf("List[%d] = %s, want %s", i, run.ID, ids[i])
		}
	}
}

func TestTrackerAddIsIdempotent(t *testing.T) {
	tr := NewTracker()
	run := newRun(validRequest())
	tr.Add(run)
	tr.Add(run)
	if tr.Len() != 1 {
		t.Fatalf("Len = %d after double Add, want 1", tr.Len())
	}
}

func TestTrackerEvict(t *testing.T) {
	tr := NewTracker()
	first := newRun(validRequest())
	second := newRun(validRequest())
	tr.Add(first)
	tr.Add(second)

	if !tr.Evict(first.ID) {
		t.Fatalf("Evict returned false for tracked run")
	}
	if tr.Evict(first.ID) {
		t.Fatalf("Evict returned true for already evicted run")
	}
	if _, ok := tr.Get(first.ID); ok {
		t.Fatalf("Get found an evicted run")
	}
	listed := tr.List()
	if len(listed) != 1 || listed[0].ID != second.ID {
		t.Fatalf("List after evict = %v, want only second run", listed)
	}

	// The evicted run pointer stays usable.
	if st := first.Status(); st.State != StatePending {
		t.Fatalf("evicted run status = %s", st)
	}
}

func TestTrackerEvictUnknownID(t *testing.T) {
	tr := NewTracker()
	if tr.Evict(uuid.New()) {
		t.Fatalf("Evict returned true for unknown id")
	}
}
