// Package persistence provides an optional snapshot/reload store for a
// node's Task Table (spec §6 "Persisted state"). Snapshots are written
// to an embedded buntdb database keyed by task id. LoadTasks returns the
// stored snapshot as a map in the shape core.TaskTable.Merge accepts; the
// caller performs the merge, which is idempotent, so replaying a
// snapshot on top of live state is safe.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// taskRecord is the JSON-on-disk shape of a model.Task.
type taskRecord = model.Task

// Store persists Task snapshots to an embedded buntdb database.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if absent) a Store at path. Pass ":memory:" for
// an ephemeral, non-persisted store (useful in tests).
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	if err := db.CreateIndex("status", "task:*", buntdb.IndexJSON("Status")); err != nil && err != buntdb.ErrIndexExists {
		return nil, fmt.Errorf("persistence: create index: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func taskKey(id model.TaskID) string {
	return "task:" + string(id)
}

// SaveTasks writes a snapshot of every task in tasks, overwriting
// whatever was previously stored under the same ids.
func (s *Store) SaveTasks(tasks []*model.Task) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		for _, t := range tasks {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("persistence: marshal task %s: %w", t.UID, err)
			}
			if _, _, err := tx.Set(taskKey(t.UID), string(data), nil); err != nil {
				return fmt.Errorf("persistence: set task %s: %w", t.UID, err)
			}
		}
		return nil
	})
}

// LoadTasks returns every task currently stored.
func (s *Store) LoadTasks() (map[model.TaskID]*model.Task, error) {
	out := make(map[model.TaskID]*model.Task)
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			if len(key) < 5 || key[:5] != "task:" {
				return true
			}
			var t taskRecord
			if err := json.Unmarshal([]byte(value), &t); err != nil {
				return true
			}
			out[t.UID] = &t
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: load tasks: %w", err)
	}
	return out, nil
}

// LoadTasksByStatus returns tasks whose stored Status matches status,
// using the "status" JSON index built at Open time.
func (s *Store) LoadTasksByStatus(status model.TaskStatus) ([]*model.Task, error) {
	var out []*model.Task
	target := fmt.Sprintf(`"Status":%d`, int(status))
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("status", func(key, value string) bool {
			if !containsJSONField(value, target) {
				return true
			}
			var t taskRecord
			if err := json.Unmarshal([]byte(value), &t); err != nil {
				return true
			}
			out = append(out, &t)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: load tasks by status: %w", err)
	}
	return out, nil
}

func containsJSONField(doc, field string) bool {
	for i := 0; i+len(field) <= len(doc); i++ {
		if doc[i:i+len(field)] == field {
			return true
		}
	}
	return false
}

// Snapshot periodically saves tasks returned by snapshot() every period
// until stop is closed, used to persist a node's Task Table in the
// background (spec §6 "Persisted state").
func (s *Store) Snapshot(period time.Duration, snapshot func() []*model.Task, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.SaveTasks(snapshot())
		case <-stop:
			return
		}
	}
}
