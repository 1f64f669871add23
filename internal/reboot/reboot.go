// Package reboot implements the SD reboot detector (C13): it tracks, per
// peer (address, port), the last-seen SD session id and reboot flag for
// unicast and multicast traffic separately, and recognises peer restarts.
package reboot

import "sync"

// PeerKey identifies a peer by its SD source address and port.
type PeerKey struct {
	Addr string
	Port uint16
}

type counters struct {
	unicastSession    uint16
	unicastRebootFlag bool
	unicastSeen       bool

	multicastSession    uint16
	multicastRebootFlag bool
	multicastSeen       bool
}

// Detector is a mutex-guarded reboot table (spec.md §3 "Reboot table",
// §4.13). It has no natural third-party library analogue; it is the same
// class of component as the teacher's DiscriminatorAllocator.
type Detector struct {
	mu    sync.Mutex
	peers map[PeerKey]*counters
}

// New creates an empty reboot detector.
func New() *Detector {
	return &Detector{peers: make(map[PeerKey]*counters)}
}

// Observe records an incoming SD message's session id and reboot flag for
// the given peer and channel (multicast or unicast), and reports whether
// this observation constitutes a reboot per spec.md §4.13:
//
//   - first observation -> store, no detection
//   - reboot_flag transitions 1->0 -> reboot
//   - reboot_flag == 1 and session_id <= stored -> reboot
//   - otherwise -> update stored, no detection
func (d *Detector) Observe(peer PeerKey, isMulticast bool, sessionID uint16, rebootFlag bool) (rebooted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.peers[peer]
	if !ok {
		c = &counters{}
		d.peers[peer] = c
	}

	if isMulticast {
		rebooted = observe(&c.multicastSeen, &c.multicastSession, &c.multicastRebootFlag, sessionID, rebootFlag)
	} else {
		rebooted = observe(&c.unicastSeen, &c.unicastSession, &c.unicastRebootFlag, sessionID, rebootFlag)
	}

	if rebooted {
		// A reboot on either channel invalidates everything we knew about
		// this peer: clear both channels so stale pre-reboot state is
		// never observable again (P5).
		delete(d.peers, peer)
	}

	return rebooted
}

func observe(seen *bool, storedSession *uint16, storedFlag *bool, sessionID uint16, rebootFlag bool) bool {
	if !*seen {
		*seen = true
		*storedSession = sessionID
		*storedFlag = rebootFlag
		return false
	}

	rebooted := (*storedFlag && !rebootFlag) || (rebootFlag && sessionID <= *storedSession)

	*storedSession = sessionID
	*storedFlag = rebootFlag

	return rebooted
}

// Forget removes all state for a peer, used when the owning component
// tears down (e.g. the RSI whose ActiveOffer referenced this peer is
// destroyed).
func (d *Detector) Forget(peer PeerKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, peer)
}
