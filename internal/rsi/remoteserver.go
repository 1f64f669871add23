package rsi

import (
	"log/slog"
	"sync"

	"github.com/someipd/someipd/internal/sdtypes"
)

// RemoteServer is the per-discovered-instance peer-facing counterpart to a
// LocalClient: it tracks the set of eventgroups the local clients have
// subscribed to and whether the latest offer came over multicast
// (spec.md §3 "RemoteServer"). The SD client reports every fresh and
// renewed offer to it through OnOfferRenewed; it is not notified of a TTL
// expiry or a StopOfferService, and its subscriptions are removed only by
// Unsubscribe and ReleaseClient. Grounded on the teacher's Session
// exposing observer callbacks into its owning Manager.
type RemoteServer struct {
	mu         sync.Mutex
	logger     *slog.Logger
	instance   sdtypes.ServiceInstanceId
	multicast  bool
	subscribed map[sdtypes.EventgroupId]map[sdtypes.ClientId]struct{}
}

func newRemoteServer(instance sdtypes.ServiceInstanceId, logger *slog.Logger) *RemoteServer {
	return &RemoteServer{
		logger:     logger.With("service_instance", instance.String()),
		instance:   instance,
		subscribed: make(map[sdtypes.EventgroupId]map[sdtypes.ClientId]struct{}),
	}
}

// OnOfferRenewed implements sdclient.RemoteServerObserver; it fires on
// every fresh offer and every TTL renewal.
func (r *RemoteServer) OnOfferRenewed(instance sdtypes.ServiceInstanceId, isMulticast bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.multicast = isMulticast
	r.logger.Debug("offer renewed", "multicast", isMulticast)
}

// Subscribe records that clientID wants eventgroup eg; returns true if this
// is the first subscriber for eg (the caller should send a wire Subscribe).
func (r *RemoteServer) Subscribe(clientID sdtypes.ClientId, eg sdtypes.EventgroupId) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients, ok := r.subscribed[eg]
	if !ok {
		clients = make(map[sdtypes.ClientId]struct{})
		r.subscribed[eg] = clients
	}
	first = len(clients) == 0
	clients[clientID] = struct{}{}
	return first
}

// Unsubscribe removes clientID from eg; returns true if it was the last
// subscriber (the caller should send a wire StopSubscribe).
func (r *RemoteServer) Unsubscribe(clientID sdtypes.ClientId, eg sdtypes.EventgroupId) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients, ok := r.subscribed[eg]
	if !ok {
		return false
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(r.subscribed, eg)
		return true
	}
	return false
}

// ReleaseClient tears down every subscription owned by clientID, e.g. on
// ReleaseService or application disconnect.
func (r *RemoteServer) ReleaseClient(clientID sdtypes.ClientId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for eg, clients := range r.subscribed {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(r.subscribed, eg)
		}
	}
}

// Eventgroups returns the currently subscribed eventgroup ids. Nothing in
// the daemon re-subscribes them after a TTL expiry.
func (r *RemoteServer) Eventgroups() []sdtypes.EventgroupId {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]sdtypes.EventgroupId, 0, len(r.subscribed))
	for eg := range r.subscribed {
		out = append(out, eg)
	}
	return out
}

// Subscribers returns the ClientIds currently subscribed to eg, used to
// route an incoming SubscribeEventgroupAck/Nack to the notifiers that
// actually asked for it.
func (r *RemoteServer) Subscribers(eg sdtypes.EventgroupId) []sdtypes.ClientId {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := r.subscribed[eg]
	out := make([]sdtypes.ClientId, 0, len(clients))
	for c := range clients {
		out = append(out, c)
	}
	return out
}
