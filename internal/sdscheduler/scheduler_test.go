package sdscheduler

import (
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	calls [][]Entry
}

func (r *recordingSender) SendSdMessage(target Target, entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]Entry(nil), entries...))
}

func (r *recordingSender) snapshot() [][]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Entry(nil), r.calls...)
}

func TestScheduler_OneShotJitterFiresWithinWindow(t *testing.T) {
	sender := &recordingSender{}
	s := New(sender, nil)
	defer s.Close()

	target := Target{Addr: "10.0.0.2", Port: 30490}
	s.ScheduleOneShotJitter(EntryKey{Channel: "find-service", ID: "x"}, target, 10*time.Millisecond, 20*time.Millisecond, "find-service-entry")

	deadline := time.After(200 * time.Millisecond)
	for {
		if len(sender.snapshot()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("one-shot schedule never fired")
		case <-time.After(time.Millisecond):
		}
	}

	calls := sender.snapshot()
	if len(calls[0]) != 1 || calls[0][0] != "find-service-entry" {
		t.Fatalf("unexpected batch: %+v", calls)
	}
}

func TestScheduler_RescheduleReplacesEarlier(t *testing.T) {
	sender := &recordingSender{}
	s := New(sender, nil)
	defer s.Close()

	target := Target{Addr: "10.0.0.2", Port: 30490}
	key := EntryKey{Channel: "offer", ID: "svc"}

	s.ScheduleOneShotJitter(key, target, 100*time.Millisecond, 100*time.Millisecond, "stale")
	s.ScheduleOneShotJitter(key, target, 10*time.Millisecond, 10*time.Millisecond, "fresh")

	time.Sleep(150 * time.Millisecond)

	calls := sender.snapshot()
	if len(calls) != 1 || calls[0][0] != "fresh" {
		t.Fatalf("expected only the fresh schedule to fire, got %+v", calls)
	}
}

func TestScheduler_UnscheduleCancels(t *testing.T) {
	sender := &recordingSender{}
	s := New(sender, nil)
	defer s.Close()

	target := Target{Addr: "10.0.0.2", Port: 30490}
	key := EntryKey{Channel: "offer", ID: "svc"}

	s.ScheduleOneShotJitter(key, target, 10*time.Millisecond, 10*time.Millisecond, "entry")
	s.Unschedule(key)

	time.Sleep(50 * time.Millisecond)

	if len(sender.snapshot()) != 0 {
		t.Fatalf("expected no send after unschedule, got %+v", sender.snapshot())
	}
}

func TestScheduler_RepetitionRunsPostAction(t *testing.T) {
	sender := &recordingSender{}
	s := New(sender, nil)
	defer s.Close()

	target := Target{Addr: "10.0.0.2", Port: 30490}
	done := make(chan struct{})

	s.ScheduleRepetition(EntryKey{Channel: "offer-repeat", ID: "svc"}, target, time.Millisecond, 3,
		func(step int) Entry { return step },
		func() { close(done) },
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post-action never ran")
	}

	calls := sender.snapshot()
	if len(calls) < 3 {
		t.Fatalf("expected at least 3 sends, got %d", len(calls))
	}
}
