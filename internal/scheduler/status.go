package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/stepgridgo/internal/step"
)

var (
	// ErrTablePoisoned is returned when a task panicked while executing a step.
	ErrTablePoisoned = errors.New("status table poisoned")
	// ErrTableInUse is returned when dispatched tasks still hold the table.
	ErrTableInUse = errors.New("status table still in use")
	// ErrTableDrained is returned when the table is accessed after Drain.
	ErrTableDrained = errors.New("status table already drained")
	// ErrIncomplete is returned when a step never reached Completed.
	ErrIncomplete = errors.New("step did not complete")
	// ErrInvalidTransition is returned when a completion is recorded for a
	// step that was never dispatched.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Phase is a step's position in its one-way lifecycle.
type Phase int

const (
	// Outstanding means the step has not started.
	Outstanding Phase = iota
	// InProgress means the step was submitted to the worker pool.
	InProgress
	// Completed means an outcome has been recorded. It is terminal.
	Completed
)

func (p Phase) String() string {
	switch p {
	case Outstanding:
		return "outstanding"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Status is a step's phase and, once Completed, its outcome.
type Status struct {
	Phase   Phase
	Outcome step.Outcome
}

// Table is the fixed-size status record shared by every actor and task of a
// run. A single mutex guards all of it.
type Table struct {
	mu       sync.Mutex
	statuses []Status
	// inflight counts dispatched tasks that have not yet recorded an outcome.
	inflight int
	poisoned error
	drained  bool
}

// NewTable returns a table of n Outstanding statuses.
func NewTable(n int) *Table {
	return &Table{statuses: make([]Status, n)}
}

// Get returns a copy of status i.
func (t *Table) Get(i int) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statuses[i]
}

// record writes the outcome of a dispatched step.
func (t *Table) record(i int, outcome step.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drained {
		return ErrTableDrained
	}
	if t.statuses[i].Phase != InProgress {
		return fmt.Errorf("%w: step %d is %s", ErrInvalidTransition, i, t.statuses[i].Phase)
	}
	t.statuses[i] = Status{Phase: Completed, Outcome: outcome}
	t.inflight--
	return nil
}

// poison marks the table as unsafe to reclaim. The first cause wins.
func (t *Table) poison(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poisoned == nil {
		t.poisoned = cause
	}
}

// Drain reclaims the table once every step has completed and no task still
// holds it, returning the outcomes in index order. The table is unusable afterwards.
func (t *Table) Drain() ([]step.Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drained {
		return nil, ErrTableDrained
	}
	if t.poisoned != nil {
		return nil, fmt.Errorf("%w: %w", ErrTablePoisoned, t.poisoned)
	}
	if t.inflight != 0 {
		return nil, fmt.Errorf("%w: %d dispatched steps have not recorded an outcome", ErrTableInUse, t.inflight)
	}

	outcomes := make([]step.Outcome, len(t.statuses))
	for i, s := range t.statuses {
		if s.Phase != Completed {
			return nil, fmt.Errorf("%w: step %d is %s", ErrIncomplete, i, s.Phase)
		}
		outcomes[i] = s.Outcome
	}
	t.drained = true
	t.statuses = nil
	return outcomes, nil
}
