package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

func newTask(t *testing.T, id model.TaskID, status model.TaskStatus, updatedAt time.Time) *model.Task {
	t.Helper()
	task := model.NewTask(id, "target", updatedAt, "gw", mustRate(t, "1"), 1, updatedAt.Add(time.Minute), updatedAt.Add(time.Hour), "A", nil, updatedAt)
	task.Status = status
	task.UpdatedAt = updatedAt
	return task
}

// TestTaskTableMergeNewerUpdateWins exercises S5: two nodes gossip a
// task, and the one with the later UpdatedAt wins the merge.
func TestTaskTableMergeNewerUpdateWins(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	table.Add(newTask(t, "t1", model.TaskPending, start))

	incoming := map[model.TaskID]*model.Task{
		"t1": newTask(t, "t1", model.TaskAcquired, start.Add(time.Minute)),
	}
	changed := table.Merge(incoming)
	if !changed {
		t.Fatalf("expected merge to report a change")
	}

	got, err := table.Get("t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.TaskAcquired {
		t.Fatalf("expected acquired status to win, got %v", got.Status)
	}
}

func TestTaskTableMergeDeliveredIsAbsorbing(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	table.Add(newTask(t, "t1", model.TaskDelivered, start))

	// A later-timestamped but non-delivered update must not overwrite it.
	incoming := map[model.TaskID]*model.Task{
		"t1": newTask(t, "t1", model.TaskFailed, start.Add(time.Hour)),
	}
	changed := table.Merge(incoming)
	if changed {
		t.Fatalf("expected delivered status to be absorbing and reject the merge")
	}

	got, _ := table.Get("t1")
	if got.Status != model.TaskDelivered {
		t.Fatalf("expected status to remain delivered, got %v", got.Status)
	}
}

func TestTaskTableMergeFailedIsTerminalUnlessDelivered(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	table.Add(newTask(t, "t1", model.TaskFailed, start))

	// A later-timestamped pending/acquired update must not resurrect a
	// failed task (spec §4.6: "failed is terminal unless superseded by
	// delivered").
	incoming := map[model.TaskID]*model.Task{
		"t1": newTask(t, "t1", model.TaskAcquired, start.Add(time.Hour)),
	}
	if table.Merge(incoming) {
		t.Fatalf("expected failed status to reject a later non-delivered update")
	}
	got, _ := table.Get("t1")
	if got.Status != model.TaskFailed {
		t.Fatalf("expected status to remain failed, got %v", got.Status)
	}

	// A late delivery report still wins over failed (data arrived).
	delivered := map[model.TaskID]*model.Task{
		"t1": newTask(t, "t1", model.TaskDelivered, start.Add(30*time.Minute)),
	}
	if !table.Merge(delivered) {
		t.Fatalf("expected delivered to supersede failed")
	}
	got, _ = table.Get("t1")
	if got.Status != model.TaskDelivered {
		t.Fatalf("expected status delivered, got %v", got.Status)
	}
}

func TestTaskTableMergeStaleUpdateDoesNotWin(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	table.Add(newTask(t, "t1", model.TaskAcquired, start.Add(time.Minute)))

	incoming := map[model.TaskID]*model.Task{
		"t1": newTask(t, "t1", model.TaskPending, start),
	}
	changed := table.Merge(incoming)
	if changed {
		t.Fatalf("expected a stale incoming update to be rejected")
	}
}

func TestTaskTableDirtyTrackingPerNeighbour(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	table.RegisterNeighbour("B")
	table.RegisterNeighbour("C")

	table.ClearDirty("B")
	table.ClearDirty("C")
	if table.DirtyFor("B") || table.DirtyFor("C") {
		t.Fatalf("expected both neighbours clean after ClearDirty")
	}

	table.Add(newTask(t, "t1", model.TaskPending, start))
	if !table.DirtyFor("B") || !table.DirtyFor("C") {
		t.Fatalf("expected Add to mark every registered neighbour dirty")
	}

	table.ClearDirty("B")
	if table.DirtyFor("B") {
		t.Fatalf("expected B clean after ClearDirty")
	}
	if !table.DirtyFor("C") {
		t.Fatalf("expected C to remain dirty independently of B")
	}
}

func TestTaskTableFindDuplicate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTaskTable()
	task := model.NewTask("t1", "target", start, "gw", mustRate(t, "1"), 1, start.Add(time.Minute), start.Add(time.Hour), "A", nil, start)
	task.PickupTime = start
	table.Add(task)

	found := table.FindDuplicate("target", start.Add(-time.Minute), start.Add(30*time.Minute))
	if found == nil {
		t.Fatalf("expected to find duplicate covering the window")
	}

	notFound := table.FindDuplicate("target", start.Add(-time.Minute), start.Add(2*time.Hour))
	if notFound != nil {
		t.Fatalf("expected no duplicate: existing task's deadline is earlier than requested")
	}
}
