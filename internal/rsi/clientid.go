package rsi

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/someipd/someipd/internal/sdtypes"
)

// maxAllocAttempts bounds the number of random draws before giving up.
// With a 16-bit space this matters far more than it does for a 32-bit
// discriminator: a busy RSI can plausibly approach exhaustion, so on top
// of the retry loop the allocator also tracks a live count to fail fast.
const maxAllocAttempts = 256

// ErrClientIdsOverflow is returned by RequestService (via the allocator)
// when no unique ClientId is available (spec.md §4.5, §7, §8 P1).
var ErrClientIdsOverflow = errors.New("client ids overflow")

// ClientIdAllocator generates unique, nonzero ClientIds for one RSI.
// Grounded on the teacher's DiscriminatorAllocator: a mutex-guarded set of
// allocated values filled by bounded random draws, so that the value
// handed to an application is not trivially guessable or sequential.
type ClientIdAllocator struct {
	mu        sync.Mutex
	allocated map[sdtypes.ClientId]struct{}
}

// NewClientIdAllocator creates an empty allocator.
func NewClientIdAllocator() *ClientIdAllocator {
	return &ClientIdAllocator{allocated: make(map[sdtypes.ClientId]struct{})}
}

// Allocate returns a fresh, unique, nonzero ClientId, or
// ErrClientIdsOverflow if the space is exhausted (P1).
func (a *ClientIdAllocator) Allocate() (sdtypes.ClientId, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.allocated) >= 0xFFFF {
		return 0, fmt.Errorf("allocate client id: %w", ErrClientIdsOverflow)
	}

	var buf [2]byte

	for range maxAllocAttempts {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("generate random client id: %w", err)
		}

		id := sdtypes.ClientId(binary.BigEndian.Uint16(buf[:]))
		if id == 0 {
			continue
		}

		if _, exists := a.allocated[id]; exists {
			continue
		}

		a.allocated[id] = struct{}{}

		return id, nil
	}

	return 0, fmt.Errorf("allocate client id after %d attempts: %w", maxAllocAttempts, ErrClientIdsOverflow)
}

// Release frees a previously allocated ClientId. Releasing an
// unallocated id is a no-op.
func (a *ClientIdAllocator) Release(id sdtypes.ClientId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, id)
}

// Live returns the number of currently-allocated ids, used by tests to
// check the P1 uniqueness/subset invariant.
func (a *ClientIdAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}

// IsAllocated reports whether id is currently allocated.
func (a *ClientIdAllocator) IsAllocated(id sdtypes.ClientId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.allocated[id]
	return ok
}
