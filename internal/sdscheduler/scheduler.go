// Package sdscheduler implements the SD Scheduler (C12, spec.md §4.12):
// pacing, jittering, batching, and cyclic/repeated emission of outgoing SD
// entries. Callers (the SD client state machine, C10, server-side offer
// logic) hand their outgoing entries to the concrete *Scheduler type
// rather than sending them themselves. original_source's
// scheduler_interface.h models the scheduler as an interface distinct
// from its clients; this package keeps the separation without an
// interface type.
package sdscheduler

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Entry is an opaque payload handed to the Sender once its schedule
// fires. The scheduler does not interpret it.
type Entry any

// Target identifies the destination SD channel: the multicast group, or
// a specific unicast peer endpoint.
type Target struct {
	Addr      string
	Port      uint16
	Multicast bool
}

// Sender transmits a batch of entries to one target as a single SD
// message. Entries appear in the slice in schedule order, satisfying the
// ordering guarantee in spec.md §4.12 ("within one composed SD message
// sent in one reactor tick, entries appear in the order they were
// scheduled").
type Sender interface {
	SendSdMessage(target Target, entries []Entry)
}

// EntryKey identifies a schedule slot for idempotent replace-on-reschedule
// and for Unschedule (spec.md §4.12: "scheduling operations are
// idempotent per (entry-key, channel)").
type EntryKey struct {
	Channel string // e.g. "find-service", "offer-service", "subscribe-ack"
	ID      string // e.g. the service-instance string, or an entry id
}

type slot struct {
	timer  *time.Timer
	ticker *time.Ticker
	cancel chan struct{}
	cyclic bool
	repeat bool
}

// Scheduler batches entries whose timers fire within the same dispatch
// pass into a single Sender.SendSdMessage call per target, the Go
// translation of "the same reactor tick".
type Scheduler struct {
	sender Sender
	logger *slog.Logger

	mu    sync.Mutex
	slots map[EntryKey]*slot

	fired chan firedEntry
	done  chan struct{}
	wg    sync.WaitGroup
}

type firedEntry struct {
	target     Target
	entry      Entry
	postAction func()
}

// New creates a Scheduler and starts its dispatch goroutine.
func New(sender Sender, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		sender: sender,
		logger: logger,
		slots:  make(map[EntryKey]*slot),
		fired:  make(chan firedEntry, 64),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.dispatch()

	return s
}

// Close stops the dispatch goroutine and cancels every pending schedule.
func (s *Scheduler) Close() {
	s.mu.Lock()
	for key, sl := range s.slots {
		stopSlot(sl)
		delete(s.slots, key)
	}
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// ScheduleOneShotJitter arms a single-shot send at a uniformly random
// delay in [minDelay, maxDelay]. Used by client state machines for
// FindService, SubscribeEventgroup, and SubscribeEventgroupAck.
func (s *Scheduler) ScheduleOneShotJitter(key EntryKey, target Target, minDelay, maxDelay time.Duration, entry Entry) {
	delay := jitter(minDelay, maxDelay)
	s.armOneShot(key, target, delay, entry, nil)
}

// ScheduleImmediate arms a send on the next dispatch pass, with no
// jitter. Used for StopOfferService, StopSubscribeEventgroup, and
// SubscribeEventgroupNack.
func (s *Scheduler) ScheduleImmediate(key EntryKey, target Target, entry Entry) {
	s.armOneShot(key, target, 0, entry, nil)
}

// ScheduleCyclic arms a repeating send every interval until explicitly
// unscheduled. Used for multicast OfferService in the main phase.
// Calling ScheduleCyclic again for the same key replaces the previous
// cyclic schedule.
func (s *Scheduler) ScheduleCyclic(key EntryKey, target Target, interval time.Duration, build func() Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.slots[key]; ok {
		stopSlot(old)
	}

	ticker := time.NewTicker(interval)
	cancel := make(chan struct{})
	sl := &slot{ticker: ticker, cancel: cancel, cyclic: true}
	s.slots[key] = sl

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ticker.C:
				select {
				case s.fired <- firedEntry{target: target, entry: build()}:
				case <-s.done:
					return
				}
			case <-cancel:
				return
			case <-s.done:
				return
			}
		}
	}()
}

// ScheduleRepetition arms sends at base*2^k for k=0..count-1; postAction
// runs after the final transmission (used to move a server-side SM into
// its main phase).
func (s *Scheduler) ScheduleRepetition(key EntryKey, target Target, base time.Duration, count int, build func(step int) Entry, postAction func()) {
	s.mu.Lock()
	if old, ok := s.slots[key]; ok {
		stopSlot(old)
		delete(s.slots, key)
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		cancel := make(chan struct{})
		s.mu.Lock()
		s.slots[key] = &slot{cancel: cancel, repeat: true}
		s.mu.Unlock()

		for k := 0; k < count; k++ {
			delay := base * time.Duration(1<<uint(k))
			timer := time.NewTimer(delay)

			select {
			case <-timer.C:
			case <-cancel:
				timer.Stop()
				return
			case <-s.done:
				timer.Stop()
				return
			}

			var pa func()
			if k == count-1 {
				pa = postAction
			}

			select {
			case s.fired <- firedEntry{target: target, entry: build(k), postAction: pa}:
			case <-s.done:
				return
			}
		}

		s.mu.Lock()
		delete(s.slots, key)
		s.mu.Unlock()
	}()
}

// Unschedule cancels any pending one-shot or cyclic schedule for key,
// matching UnscheduleOfferServiceEntry's "cancels both unicast and
// cyclic multicast entries keyed by entry_id".
func (s *Scheduler) Unschedule(key EntryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.slots[key]; ok {
		stopSlot(sl)
		delete(s.slots, key)
	}
}

func (s *Scheduler) armOneShot(key EntryKey, target Target, delay time.Duration, entry Entry, postAction func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.slots[key]; ok {
		stopSlot(old)
	}

	timer := time.NewTimer(delay)
	cancel := make(chan struct{})
	sl := &slot{timer: timer, cancel: cancel}
	s.slots[key] = sl

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-timer.C:
		case <-cancel:
			return
		case <-s.done:
			return
		}

		s.mu.Lock()
		delete(s.slots, key)
		s.mu.Unlock()

		select {
		case s.fired <- firedEntry{target: target, entry: entry, postAction: postAction}:
		case <-s.done:
		}
	}()
}

func stopSlot(sl *slot) {
	close(sl.cancel)
	if sl.timer != nil {
		sl.timer.Stop()
	}
	if sl.ticker != nil {
		sl.ticker.Stop()
	}
}

// dispatch drains s.fired, coalescing every entry that is already ready
// into one batch per target before handing it to the Sender — the Go
// translation of "batched with any other entries that happen to fire in
// the same reactor tick".
func (s *Scheduler) dispatch() {
	defer s.wg.Done()

	for {
		var first firedEntry

		select {
		case first = <-s.fired:
		case <-s.done:
			return
		}

		batches := map[Target][]Entry{}
		postActions := []func(){}

		appendFired := func(f firedEntry) {
			batches[f.target] = append(batches[f.target], f.entry)
			if f.postAction != nil {
				postActions = append(postActions, f.postAction)
			}
		}

		appendFired(first)

	drain:
		for {
			select {
			case f := <-s.fired:
				appendFired(f)
			default:
				break drain
			}
		}

		for target, entries := range batches {
			s.sender.SendSdMessage(target, entries)
		}
		for _, pa := range postActions {
			pa()
		}
	}
}

// jitter picks a uniformly random delay in [min, max]. Non-cryptographic
// randomness is appropriate here, the same judgment the teacher makes
// for BFD's transmit jitter in session.go's ApplyJitter.
func jitter(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	span := maxDelay - minDelay
	return minDelay + time.Duration(rand.Int64N(int64(span)+1)) //nolint:gosec // jitter does not require cryptographic randomness
}
