package rsi

import (
	"errors"
	"sync"

	"github.com/someipd/someipd/internal/sdtypes"
)

// ErrDuplicateRSI is returned by Table.Add when an RSI already exists for
// the given key.
var ErrDuplicateRSI = errors.New("rsi: duplicate required-service-instance")

// Key identifies one configured RSI by its dummy-minor-version identity
// (spec.md §3: "minor-version is a compatibility criterion, not an
// identity criterion"), so lookups by incoming SD entries never need the
// entry's minor version to find the owning RSI.
type Key struct {
	Service  sdtypes.ServiceId
	Major    sdtypes.MajorVersion
	Instance sdtypes.InstanceId
}

// KeyOf derives a Table lookup key from a full service-instance identity.
func KeyOf(id sdtypes.ServiceInstanceId) Key {
	return Key{Service: id.Service, Major: id.Major, Instance: id.Instance}
}

// eventChanSize bounds the admin surface's ServiceEvent fan-out channel,
// matching the teacher's notifyChSize sizing for StateChange fan-out.
const eventChanSize = 64

// Table is the process-wide registry of configured RSIs (spec.md §4.8),
// grounded on the teacher's bfd.Manager mutex-guarded CRUD registry.
type Table struct {
	mu     sync.RWMutex
	rsis   map[Key]*RSI
	events chan ServiceEvent
}

// NewTable creates an empty RSI registry.
func NewTable() *Table {
	return &Table{
		rsis:   make(map[Key]*RSI),
		events: make(chan ServiceEvent, eventChanSize),
	}
}

// Events returns the channel every registered RSI's offer-start/offer-stop
// transitions are published onto, consumed by the admin surface's
// WatchServiceEvents RPC.
func (t *Table) Events() <-chan ServiceEvent {
	return t.events
}

// Add registers r under key and arms it to publish onto this Table's
// ServiceEvent channel. Returns ErrDuplicateRSI if key is already
// occupied.
func (t *Table) Add(key Key, r *RSI) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rsis[key]; exists {
		return ErrDuplicateRSI
	}
	r.SetEvents(t.events)
	t.rsis[key] = r
	return nil
}

// Lookup finds the RSI registered for key.
func (t *Table) Lookup(key Key) (*RSI, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rsis[key]
	return r, ok
}

// LookupForOffer finds the RSI whose configured instance matches an
// incoming offer's (service, major, instance) — trying the specific
// instance key first, then falling back to the wildcard-ALL RSI for the
// same (service, major), per spec.md §4.9.1.
func (t *Table) LookupForOffer(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId) (*RSI, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r, ok := t.rsis[Key{Service: service, Major: major, Instance: instance}]; ok {
		return r, true
	}
	r, ok := t.rsis[Key{Service: service, Major: major, Instance: sdtypes.InstanceIdAll}]
	return r, ok
}

// Remove deregisters and closes the RSI at key, if any.
func (t *Table) Remove(key Key) {
	t.mu.Lock()
	r, ok := t.rsis[key]
	if ok {
		delete(t.rsis, key)
	}
	t.mu.Unlock()

	if ok {
		r.Close()
	}
}

// All returns a snapshot of every registered RSI, used by the admin
// surface's ListRequiredServiceInstances.
func (t *Table) All() map[Key]*RSI {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[Key]*RSI, len(t.rsis))
	for k, v := range t.rsis {
		out[k] = v
	}
	return out
}

// Close tears down every registered RSI, used at daemon shutdown.
func (t *Table) Close() {
	t.mu.Lock()
	rsis := make([]*RSI, 0, len(t.rsis))
	for _, r := range t.rsis {
		rsis = append(rsis, r)
	}
	t.rsis = make(map[Key]*RSI)
	t.mu.Unlock()

	for _, r := range rsis {
		r.Close()
	}
}
