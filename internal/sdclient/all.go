package sdclient

import (
	"log/slog"
	"sync"
	"time"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

// AllClientFactory constructs the per-discovered-instance child Client and
// its associated remote-server observer; it is how AllClient stays
// decoupled from whatever owns the remote-server manager (spec.md §4.10,
// §9 "Observer graphs without cycles").
type AllClientFactory interface {
	NewChild(instance sdtypes.InstanceId) (Listener, RemoteServerObserver)
}

// AllClient is the instance-id-ALL variant of the SD client (C10). It
// owns a Client that sends FindService(instance=ALL) and lazily spawns a
// per-discovered-instance Client plus remote server on each distinct
// OfferService entry (spec.md §4.10).
type AllClient struct {
	base    *Client
	factory AllClientFactory

	mu       sync.Mutex
	children map[sdtypes.InstanceId]*Client
}

// NewAllClient creates an AllClient. cfg.Instance.Instance must be
// sdtypes.InstanceIdAll.
func NewAllClient(cfg Config, scheduler *sdscheduler.Scheduler, target sdscheduler.Target, factory AllClientFactory, logger *slog.Logger) *AllClient {
	a := &AllClient{
		factory:  factory,
		children: make(map[sdtypes.InstanceId]*Client),
	}

	// The base client's own Listener/Observer are unused for offer intake
	// (the ALL client's own OnOfferServiceEntry dispatches to children
	// instead); it still drives FindService(instance=ALL) via the shared FSM.
	a.base = New(cfg, scheduler, target, nil, nil, logger)

	return a
}

// Start/Stop/OnNetworkUp/OnNetworkDown/RequestService/ReleaseService
// forward to the base client, which owns the FindService(ALL) lifecycle.
func (a *AllClient) Start()          { a.base.Start() }
func (a *AllClient) Stop()           { a.base.Stop() }
func (a *AllClient) OnNetworkUp()    { a.base.OnNetworkUp() }
func (a *AllClient) OnNetworkDown()  { a.base.OnNetworkDown() }
func (a *AllClient) RequestService() { a.base.RequestService() }
func (a *AllClient) ReleaseService() { a.base.ReleaseService() }
func (a *AllClient) State() State    { return a.base.State() }

// OnOfferServiceEntry looks up or lazily constructs the child Client for
// the offered instance and forwards the offer to it (spec.md §4.10).
func (a *AllClient) OnOfferServiceEntry(instance sdtypes.InstanceId, serviceInstance sdtypes.ServiceInstanceId, peer reboot.PeerKey, entryID uint32, ttl time.Duration, isMulticast bool, endpoints []sdtypes.Endpoint) {
	child := a.childFor(instance, serviceInstance)
	child.RequestService()
	child.OnOfferServiceEntry(peer, entryID, ttl, isMulticast, endpoints)
}

// OnStopOfferServiceEntry forwards to the matching child, if any.
func (a *AllClient) OnStopOfferServiceEntry(instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32) {
	a.mu.Lock()
	child, ok := a.children[instance]
	a.mu.Unlock()

	if ok {
		child.OnStopOfferServiceEntry(peer, entryID)
	}
}

// OnReboot notifies every child of the peer's reboot; entries for peers
// unrelated to a given child are no-ops there (P5).
func (a *AllClient) OnReboot(peer reboot.PeerKey) {
	a.mu.Lock()
	children := make([]*Client, 0, len(a.children))
	for _, c := range a.children {
		children = append(children, c)
	}
	a.mu.Unlock()

	for _, c := range children {
		c.OnReboot(peer)
	}
}

// Children returns a snapshot of the currently discovered instance ids.
func (a *AllClient) Children() []sdtypes.InstanceId {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]sdtypes.InstanceId, 0, len(a.children))
	for id := range a.children {
		out = append(out, id)
	}
	return out
}

// Reap removes and closes every child whose SD client is Down and whose
// service is no longer required — the Go translation of the "reactor
// software-event" guard in spec.md §4.10 against removing a child an
// application just re-requested.
func (a *AllClient) Reap(required func(sdtypes.InstanceId) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, child := range a.children {
		if child.State() == StateDown && !required(id) {
			child.Close()
			delete(a.children, id)
		}
	}
}

func (a *AllClient) childFor(instance sdtypes.InstanceId, serviceInstance sdtypes.ServiceInstanceId) *Client {
	a.mu.Lock()
	defer a.mu.Unlock()

	if child, ok := a.children[instance]; ok {
		return child
	}

	listener, observer := a.factory.NewChild(instance)

	childCfg := a.base.cfg
	childCfg.Instance = serviceInstance

	child := New(childCfg, a.base.scheduler, a.base.sendTo, listener, observer, a.base.logger)
	// The child only exists because an offer arrived over the network, so
	// it starts with SD running and the network up.
	child.Start()
	child.OnNetworkUp()
	a.children[instance] = child

	return child
}

// Close stops the base client and every child.
func (a *AllClient) Close() {
	a.mu.Lock()
	children := make([]*Client, 0, len(a.children))
	for _, c := range a.children {
		children = append(children, c)
	}
	a.children = make(map[sdtypes.InstanceId]*Client)
	a.mu.Unlock()

	for _, c := range children {
		c.Close()
	}
	a.base.Close()
}
