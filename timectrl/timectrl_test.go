package timectrl

import (
	"sync"
	"testing"
	"time"
)

func TestTimeControllerRunUntilFiresDueEvents(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start)

	var fired []time.Time
	var mu sync.Mutex
	record := func() {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, tc.Now())
	}

	tc.Schedule(start.Add(10*time.Second), record)
	tc.Schedule(start.Add(30*time.Second), record)
	tc.Schedule(start.Add(20*time.Second), record)

	tc.RunUntil(start.Add(25 * time.Second))

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 2 {
		t.Fatalf("expected 2 events fired by t=25s, got %d", len(fired))
	}
	if !fired[0].Equal(start.Add(10 * time.Second)) {
		t.Fatalf("first event fired at %v, want t=10s", fired[0])
	}
	if !fired[1].Equal(start.Add(20 * time.Second)) {
		t.Fatalf("second event fired at %v, want t=20s", fired[1])
	}
	if !tc.Now().Equal(start.Add(25 * time.Second)) {
		t.Fatalf("Now() = %v, want t=25s", tc.Now())
	}
}

func TestTimeControllerCancel(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start)

	fired := false
	id := tc.Schedule(start.Add(time.Second), func() { fired = true })
	tc.Cancel(id)

	tc.RunUntil(start.Add(time.Minute))
	if fired {
		t.Fatalf("cancelled event fired")
	}
}

func TestTimeControllerSleep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start)

	var wakeAt time.Time
	done := make(chan struct{})
	tc.Spawn(func() {
		wakeAt = <-tc.Sleep(5 * time.Second)
		close(done)
	})

	tc.RunUntil(start.Add(10 * time.Second))
	<-done

	if !wakeAt.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("woke at %v, want t=5s", wakeAt)
	}
}

func TestTimeControllerNextEventTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start)

	if _, ok := tc.NextEventTime(); ok {
		t.Fatalf("expected no pending events on an empty queue")
	}

	tc.Schedule(start.Add(time.Minute), func() {})
	next, ok := tc.NextEventTime()
	if !ok {
		t.Fatalf("expected a pending event")
	}
	if !next.Equal(start.Add(time.Minute)) {
		t.Fatalf("NextEventTime() = %v, want t=1m", next)
	}
}

func TestTimeControllerImplementsEventScheduler(t *testing.T) {
	var _ EventScheduler = NewTimeController(time.Now())
}
