package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// TaskTable is a per-node, eventually-consistent view of all known
// Tasks, reconciled across nodes by gossip merge (spec §4.6). Merge is a
// CRDT-style dominance order: Delivered is absorbing and always wins
// regardless of timestamp; Failed is replaced only by Delivered;
// otherwise the later UpdatedAt wins.
type TaskTable struct {
	mu sync.RWMutex

	tasks map[model.TaskID]*model.Task

	// dirty tracks, per neighbour, whether this table has changed since
	// the last snapshot/delta sent to that neighbour. Modelled as a
	// per-neighbour flag rather than one global bool (spec §9 notes the
	// original single-flag implementation only notifies the first
	// neighbour it responds to in a multi-contact window; here every
	// neighbour in contact gets its own pending delta).
	dirty map[model.NodeID]bool
}

// NewTaskTable returns an empty task table.
func NewTaskTable() *TaskTable {
	return &TaskTable{
		tasks: make(map[model.TaskID]*model.Task),
		dirty: make(map[model.NodeID]bool),
	}
}

// Add inserts or replaces a task, and marks every currently-known
// neighbour dirty.
func (t *TaskTable) Add(task *model.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[task.UID] = task
	t.markAllDirtyLocked()
}

// Get returns the task with the given ID.
func (t *TaskTable) Get(id model.TaskID) (*model.Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// All returns a snapshot copy of every task in the table, suitable for a
// full handshake send (spec §4.5 "handshake: send full task table
// snapshot").
func (t *TaskTable) All() map[model.TaskID]*model.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.TaskID]*model.Task, len(t.tasks))
	for id, task := range t.tasks {
		out[id] = task.Clone()
	}
	return out
}

// FindDuplicate implements spec §4.4 step 5: returns an existing task
// covering target with pickup_time >= since and deadline_delivery >=
// deadline, or nil.
func (t *TaskTable) FindDuplicate(target model.NodeID, since, deadline time.Time) *model.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, task := range t.tasks {
		if task.TargetID == target && !task.PickupTime.Before(since) && !task.DeadlineDelivery.Before(deadline) {
			return task
		}
	}
	return nil
}

// Merge folds other's entries into this table, applying the dominance
// rule per task ID (model.Task.Dominates): Delivered is absorbing; Failed
// is replaced only by Delivered; otherwise the later UpdatedAt wins
// (spec §4.6). Returns true if the merge changed any
// local entry, in which case every neighbour is marked dirty.
func (t *TaskTable) Merge(other map[model.TaskID]*model.Task) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	for id, incoming := range other {
		local, exists := t.tasks[id]
		if !exists || incoming.Dominates(local) {
			t.tasks[id] = incoming.Clone()
			changed = true
		}
	}
	if changed {
		t.markAllDirtyLocked()
	}
	return changed
}

// DirtyFor reports whether there is a pending delta for neighbour, per
// the per-neighbour dirty flag (spec §4.5, §9 decision).
func (t *TaskTable) DirtyFor(neighbour model.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty[neighbour]
}

// ClearDirty marks neighbour's pending delta as sent.
func (t *TaskTable) ClearDirty(neighbour model.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty[neighbour] = false
}

// RegisterNeighbour ensures neighbour has a dirty-flag entry, defaulting
// to true so a newly-met neighbour always receives a full handshake
// worth of state on first contact.
func (t *TaskTable) RegisterNeighbour(neighbour model.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.dirty[neighbour]; !ok {
		t.dirty[neighbour] = true
	}
}

func (t *TaskTable) markAllDirtyLocked() {
	for n := range t.dirty {
		t.dirty[n] = true
	}
}
