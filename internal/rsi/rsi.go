// Package rsi implements the Required-Service-Instance (C8): for one
// locally required service it owns an SD client (C9, or C10 for the
// wildcard instance ALL), a remote-server per discovered instance, and a
// ClientId allocator, and vends LocalClient handles to Applications
// (spec.md §3 "RequiredServiceInstance", §4.8).
package rsi

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdclient"
	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

// SubscribeEventgroupEntry is the payload scheduled for transmission when
// the first LocalClient subscribes to an eventgroup on a RemoteServer
// (spec.md §4.9 "Subscribe").
type SubscribeEventgroupEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	TTL        time.Duration
	Endpoint   sdtypes.Endpoint
}

// StopSubscribeEventgroupEntry is the payload scheduled when the last
// LocalClient unsubscribes from an eventgroup.
type StopSubscribeEventgroupEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
}

// AppNotifier is how an RSI delivers the "SD state to app" operation
// family (spec.md §4.4) to whichever Application currently holds a
// LocalClient against this RSI.
type AppNotifier interface {
	OnStartOfferServiceInstance(instance sdtypes.ServiceInstanceId, offer sdclient.ActiveOffer)
	OnStopOfferServiceInstance(instance sdtypes.ServiceInstanceId)
	OnSubscriptionStateChange(instance sdtypes.ServiceInstanceId, eg sdtypes.EventgroupId, subscribed bool)
}

// Config carries the per-RSI deployment and SD timing configuration
// (spec.md §3 RequiredServiceInstance attributes).
type Config struct {
	Deployment      string
	Instance        sdtypes.ServiceInstanceId
	Policy          sdtypes.MinorVersionPolicy
	InitialMin      time.Duration
	InitialMax      time.Duration
	RepetitionBase  time.Duration
	RepetitionCount int
	FindServiceTTL  time.Duration

	// Endpoint is the local delivery address this RSI advertises on
	// outgoing SubscribeEventgroup entries, so the offering peer knows
	// where to send matching events (spec.md §4.9 "Subscribe", the
	// required-side counterpart of a provided instance's OfferService
	// endpoint).
	Endpoint sdtypes.Endpoint
}

// RSI is the Required-Service-Instance component (C8). It survives
// individual Application connects/disconnects; only its notifier set and
// ClientId allocation change per request (spec.md §3 "Lifecycle").
type RSI struct {
	cfg       Config
	logger    *slog.Logger
	scheduler *sdscheduler.Scheduler
	sendTo    sdscheduler.Target

	clientIDs *ClientIdAllocator

	specific *sdclient.Client
	all      *sdclient.AllClient

	mu             sync.Mutex
	offers         map[sdtypes.InstanceId]sdclient.ActiveOffer
	remoteServers  map[sdtypes.InstanceId]*RemoteServer
	notifiers      map[sdtypes.ClientId]AppNotifier
	requesterCount int
	events         chan<- ServiceEvent
}

// ServiceEvent is one offer-start/offer-stop transition observed on a
// registered RSI, published for the admin surface's WatchServiceEvents
// (spec.md §2 admin surface).
type ServiceEvent struct {
	Deployment string
	Instance   sdtypes.ServiceInstanceId
	Started    bool
	Timestamp  time.Time
}

// SetEvents arms ch as the destination for this RSI's ServiceEvents;
// called by Table.Add so every registered RSI feeds the same admin
// fan-out channel. A nil ch (the default) disables event publication.
func (r *RSI) SetEvents(ch chan<- ServiceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = ch
}

func (r *RSI) publish(instance sdtypes.ServiceInstanceId, started bool) {
	r.mu.Lock()
	ch := r.events
	r.mu.Unlock()

	if ch == nil {
		return
	}
	select {
	case ch <- ServiceEvent{Deployment: r.cfg.Deployment, Instance: instance, Started: started, Timestamp: time.Now()}:
	default:
	}
}

// New constructs an RSI and its owned SD client. target is the SOME/IP-SD
// multicast (or configured unicast) endpoint this RSI sends to.
func New(cfg Config, scheduler *sdscheduler.Scheduler, target sdscheduler.Target, logger *slog.Logger) *RSI {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("deployment", cfg.Deployment, "service_instance", cfg.Instance.String())

	r := &RSI{
		cfg:           cfg,
		logger:        logger,
		scheduler:     scheduler,
		sendTo:        target,
		clientIDs:     NewClientIdAllocator(),
		offers:        make(map[sdtypes.InstanceId]sdclient.ActiveOffer),
		remoteServers: make(map[sdtypes.InstanceId]*RemoteServer),
		notifiers:     make(map[sdtypes.ClientId]AppNotifier),
	}

	clientCfg := sdclient.Config{
		Instance:        cfg.Instance,
		Policy:          cfg.Policy,
		InitialMin:      cfg.InitialMin,
		InitialMax:      cfg.InitialMax,
		RepetitionBase:  cfg.RepetitionBase,
		RepetitionCount: cfg.RepetitionCount,
		FindServiceTTL:  cfg.FindServiceTTL,
	}

	if cfg.Instance.Instance == sdtypes.InstanceIdAll {
		r.all = sdclient.NewAllClient(clientCfg, scheduler, target, r, logger)
	} else {
		r.remoteServers[cfg.Instance.Instance] = newRemoteServer(cfg.Instance, logger)
		r.specific = sdclient.New(clientCfg, scheduler, target, r, r.remoteServers[cfg.Instance.Instance], logger)
	}

	return r
}

// NewChild implements sdclient.AllClientFactory for the wildcard-instance
// case (C10): each discovered instance gets its own RemoteServer, and this
// RSI itself is reused as the Listener (it already fans out by instance).
func (r *RSI) NewChild(instance sdtypes.InstanceId) (sdclient.Listener, sdclient.RemoteServerObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.remoteServers[instance]
	if !ok {
		rs = newRemoteServer(sdtypes.ServiceInstanceId{Service: r.cfg.Instance.Service, Major: r.cfg.Instance.Major, Instance: instance}, r.logger)
		r.remoteServers[instance] = rs
	}
	return r, rs
}

// OnServiceUp implements sdclient.Listener: records the active offer and
// fans out OnStartOfferServiceInstance to every registered notifier.
func (r *RSI) OnServiceUp(instance sdtypes.ServiceInstanceId, offer sdclient.ActiveOffer) {
	r.mu.Lock()
	r.offers[instance.Instance] = offer
	notifiers := r.snapshotNotifiers()
	r.mu.Unlock()

	for _, n := range notifiers {
		n.OnStartOfferServiceInstance(instance, offer)
	}
	r.publish(instance, true)
}

// OnServiceDown implements sdclient.Listener.
func (r *RSI) OnServiceDown(instance sdtypes.ServiceInstanceId) {
	r.mu.Lock()
	delete(r.offers, instance.Instance)
	notifiers := r.snapshotNotifiers()
	r.mu.Unlock()

	for _, n := range notifiers {
		n.OnStopOfferServiceInstance(instance)
	}
	r.publish(instance, false)
}

func (r *RSI) snapshotNotifiers() []AppNotifier {
	out := make([]AppNotifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		out = append(out, n)
	}
	return out
}

// RequestService allocates a ClientId, registers notifier for future SD
// state changes, marks the service requested on the owned SD client, and
// delivers the "initial snapshot" of any already-active offers
// synchronously, before RequestService returns (spec.md §4.8). The
// snapshot is copied under r.mu in the same critical section that
// registers notifier.
func (r *RSI) RequestService(notifier AppNotifier) (sdtypes.ClientId, control.ReturnCode) {
	id, err := r.clientIDs.Allocate()
	if err != nil {
		return 0, control.ReturnCodeRequestServiceClientIdsOverflow
	}

	r.mu.Lock()
	r.notifiers[id] = notifier
	r.requesterCount++
	offers := make(map[sdtypes.InstanceId]sdclient.ActiveOffer, len(r.offers))
	for k, v := range r.offers {
		offers[k] = v
	}
	r.mu.Unlock()

	if r.specific != nil {
		r.specific.RequestService()
	} else {
		r.all.RequestService()
	}

	for instanceID, offer := range offers {
		notifier.OnStartOfferServiceInstance(r.instanceIdentity(instanceID), offer)
	}

	return id, control.ReturnCodeOk
}

// ReleaseService frees clientID's subscriptions and notifier registration.
func (r *RSI) ReleaseService(clientID sdtypes.ClientId) control.ReturnCode {
	r.mu.Lock()
	if _, ok := r.notifiers[clientID]; !ok {
		r.mu.Unlock()
		return control.ReturnCodeNotOk
	}
	delete(r.notifiers, clientID)
	r.requesterCount--
	remaining := r.requesterCount
	for _, rs := range r.remoteServers {
		rs.ReleaseClient(clientID)
	}
	r.mu.Unlock()

	r.clientIDs.Release(clientID)

	if remaining <= 0 {
		if r.specific != nil {
			r.specific.ReleaseService()
		} else {
			r.all.ReleaseService()
		}
	}

	return control.ReturnCodeOk
}

// StartServiceDiscovery arms this RSI's SD client (spec.md §4.5).
func (r *RSI) StartServiceDiscovery() control.ReturnCode {
	if r.specific != nil {
		r.specific.Start()
		r.specific.OnNetworkUp()
	} else {
		r.all.Start()
		r.all.OnNetworkUp()
	}
	return control.ReturnCodeOk
}

// StopServiceDiscovery disarms this RSI's SD client.
func (r *RSI) StopServiceDiscovery() {
	if r.specific != nil {
		r.specific.OnNetworkDown()
		r.specific.Stop()
	} else {
		r.all.OnNetworkDown()
		r.all.Stop()
	}
}

// SubscribeEvent registers clientID's interest in eventgroup eg against
// the RemoteServer for instance (specific RSIs have exactly one).
func (r *RSI) SubscribeEvent(clientID sdtypes.ClientId, instance sdtypes.InstanceId, eg sdtypes.EventgroupId) control.ReturnCode {
	r.mu.Lock()
	if _, ok := r.notifiers[clientID]; !ok {
		r.mu.Unlock()
		return control.ReturnCodeNotOk
	}
	rs, ok := r.remoteServers[instance]
	r.mu.Unlock()
	if !ok {
		return control.ReturnCodeNotOk
	}

	if first := rs.Subscribe(clientID, eg); first {
		r.scheduleSubscribe(instance, eg)
	}
	return control.ReturnCodeOk
}

// UnsubscribeEvent deregisters clientID's interest in eventgroup eg.
func (r *RSI) UnsubscribeEvent(clientID sdtypes.ClientId, instance sdtypes.InstanceId, eg sdtypes.EventgroupId) {
	r.mu.Lock()
	rs, ok := r.remoteServers[instance]
	r.mu.Unlock()
	if !ok {
		return
	}
	if last := rs.Unsubscribe(clientID, eg); last {
		r.scheduleStopSubscribe(instance, eg)
	}
}

// scheduleSubscribe arms the wire-level SubscribeEventgroup for the first
// subscriber of (instance, eg), jittered the same way the owned SD
// client jitters its initial FindService (spec.md §4.9 "Subscribe").
func (r *RSI) scheduleSubscribe(instance sdtypes.InstanceId, eg sdtypes.EventgroupId) {
	if r.scheduler == nil {
		return
	}
	id := r.instanceIdentity(instance)
	entry := SubscribeEventgroupEntry{
		Service:    id.Service,
		Instance:   instance,
		Major:      id.Major,
		Eventgroup: eg,
		TTL:        r.cfg.FindServiceTTL,
		Endpoint:   r.cfg.Endpoint,
	}
	key := sdscheduler.EntryKey{Channel: "subscribe-eventgroup", ID: fmt.Sprintf("%s-%d", id.String(), eg)}
	r.scheduler.ScheduleOneShotJitter(key, r.sendTo, r.cfg.InitialMin, r.cfg.InitialMax, entry)
}

// scheduleStopSubscribe cancels any still-pending subscribe for (instance,
// eg) and arms an immediate wire-level StopSubscribeEventgroup for the
// last unsubscribe.
func (r *RSI) scheduleStopSubscribe(instance sdtypes.InstanceId, eg sdtypes.EventgroupId) {
	if r.scheduler == nil {
		return
	}
	id := r.instanceIdentity(instance)
	subKey := sdscheduler.EntryKey{Channel: "subscribe-eventgroup", ID: fmt.Sprintf("%s-%d", id.String(), eg)}
	r.scheduler.Unschedule(subKey)

	entry := StopSubscribeEventgroupEntry{
		Service:    id.Service,
		Instance:   instance,
		Major:      id.Major,
		Eventgroup: eg,
	}
	key := sdscheduler.EntryKey{Channel: "stop-subscribe-eventgroup", ID: fmt.Sprintf("%s-%d", id.String(), eg)}
	r.scheduler.ScheduleImmediate(key, r.sendTo, entry)
}

// OnSubscribeEventgroupAck forwards a wire SubscribeEventgroupAck to every
// notifier whose LocalClient actually subscribed to the acknowledged
// eventgroup (spec.md §4.9 "subscription state to app").
func (r *RSI) OnSubscribeEventgroupAck(ack entries.SubscribeEventgroupAckEntry) {
	r.notifySubscriptionState(ack.Instance, ack.Eventgroup, true)
}

// OnSubscribeEventgroupNack is the Nack sibling of OnSubscribeEventgroupAck.
func (r *RSI) OnSubscribeEventgroupNack(nack entries.SubscribeEventgroupNackEntry) {
	r.notifySubscriptionState(nack.Instance, nack.Eventgroup, false)
}

func (r *RSI) notifySubscriptionState(instance sdtypes.InstanceId, eg sdtypes.EventgroupId, subscribed bool) {
	r.mu.Lock()
	rs, ok := r.remoteServers[instance]
	r.mu.Unlock()
	if !ok {
		return
	}

	identity := r.instanceIdentity(instance)
	for _, clientID := range rs.Subscribers(eg) {
		r.mu.Lock()
		notifier, ok := r.notifiers[clientID]
		r.mu.Unlock()
		if ok {
			notifier.OnSubscriptionStateChange(identity, eg, subscribed)
		}
	}
}

// OnSubscribeEventgroupEntry observes an incoming SubscribeEventgroup
// targeting a locally-offered instance. This daemon does not yet track
// provided-side subscribers, so the entry is logged rather than acted on.
func (r *RSI) OnSubscribeEventgroupEntry(sub entries.SubscribeEventgroupEntry) {
	r.logger.Debug("subscribe eventgroup entry observed", "eventgroup", sub.Eventgroup)
}

// OnStopSubscribeEventgroupEntry is the StopSubscribe sibling of
// OnSubscribeEventgroupEntry.
func (r *RSI) OnStopSubscribeEventgroupEntry(stop entries.StopSubscribeEventgroupEntry) {
	r.logger.Debug("stop subscribe eventgroup entry observed", "eventgroup", stop.Eventgroup)
}

// GetOfferedServices returns a snapshot of the currently active offers,
// keyed by instance id (empty or singleton for a specific instance,
// possibly many for ALL). Consumed for the "initial snapshot" delivered
// to newly-registered notifiers (spec.md §4.8).
func (r *RSI) GetOfferedServices() map[sdtypes.InstanceId]sdclient.ActiveOffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[sdtypes.InstanceId]sdclient.ActiveOffer, len(r.offers))
	for k, v := range r.offers {
		out[k] = v
	}
	return out
}

// OnOfferServiceEntry forwards a wire OfferService entry to the owned SD
// client, routing through the AllClient variant for wildcard RSIs. Called
// by the SD Message Processor (C11) once it has resolved the entry to
// this RSI by (service, major, instance).
func (r *RSI) OnOfferServiceEntry(instance sdtypes.InstanceId, serviceInstance sdtypes.ServiceInstanceId, peer reboot.PeerKey, entryID uint32, ttl time.Duration, isMulticast bool, endpoints []sdtypes.Endpoint) {
	if r.specific != nil {
		r.specific.OnOfferServiceEntry(peer, entryID, ttl, isMulticast, endpoints)
		return
	}
	r.all.OnOfferServiceEntry(instance, serviceInstance, peer, entryID, ttl, isMulticast, endpoints)
}

// OnStopOfferServiceEntry forwards a wire StopOfferService entry.
func (r *RSI) OnStopOfferServiceEntry(instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32) {
	if r.specific != nil {
		r.specific.OnStopOfferServiceEntry(peer, entryID)
		return
	}
	r.all.OnStopOfferServiceEntry(instance, peer, entryID)
}

// OnReboot forwards a detected peer reboot to the owned SD client.
func (r *RSI) OnReboot(peer reboot.PeerKey) {
	if r.specific != nil {
		r.specific.OnReboot(peer)
		return
	}
	r.all.OnReboot(peer)
}

func (r *RSI) instanceIdentity(instance sdtypes.InstanceId) sdtypes.ServiceInstanceId {
	id := r.cfg.Instance
	id.Instance = instance
	return id
}

// Config returns the static deployment/timing configuration this RSI was
// constructed with, used by the admin surface's ListRequiredServiceInstances.
func (r *RSI) Config() Config {
	return r.cfg
}

// RequesterCount returns the number of Applications currently holding a
// LocalClient against this RSI, used by the admin surface.
func (r *RSI) RequesterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requesterCount
}

// State returns the owned SD client's current lifecycle state, used by
// the admin surface's ListRequiredServiceInstances.
func (r *RSI) State() sdclient.State {
	if r.specific != nil {
		return r.specific.State()
	}
	return r.all.State()
}

// Close tears down the owned SD client(s).
func (r *RSI) Close() {
	if r.specific != nil {
		r.specific.Close()
	} else {
		r.all.Close()
	}
}
