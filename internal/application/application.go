// Package application implements the Application (C6) and Application
// Manager (C7): one Application binds a connected process's IPC
// Connection, Receive/Send Routers, and Command Controller together and
// owns that process's LocalClient/LocalServer maps; the Manager accepts
// new connections and runs the deferred-cleanup dispatch loop that tears
// an Application down once it disconnects (spec.md §3 "Application",
// §4.6, P9).
package application

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/ipc"
	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/router"
	"github.com/someipd/someipd/internal/sdclient"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
	"github.com/someipd/someipd/internal/trace"
	"github.com/someipd/someipd/internal/validator"
)

// OfferScheduling bundles the SD timing and transport an Application needs
// to actually transmit OfferService/StopOfferService entries for its
// LocalServer instances: a repetition phase at (RepetitionBase, k=0..
// RepetitionCount-1) transitioning into a cyclic main phase every
// CyclicDelay, per the server-side state machine (spec.md §4.5, §4.9.1).
// A zero-value OfferScheduling (its Scheduler is nil) disables scheduling,
// which production wiring never does but keeps tests that don't care about
// the wire side simple.
type OfferScheduling struct {
	Scheduler       *sdscheduler.Scheduler
	Target          sdscheduler.Target
	Endpoint        sdtypes.Endpoint
	CyclicDelay     time.Duration
	RepetitionBase  time.Duration
	RepetitionCount int
	TTL             time.Duration
}

// OfferServiceEntry is the payload scheduled for transmission on each
// repetition/cyclic tick of an offered LocalServer instance.
type OfferServiceEntry struct {
	Service  sdtypes.ServiceId
	Instance sdtypes.InstanceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
	TTL      time.Duration
	Endpoint sdtypes.Endpoint
}

// StopOfferServiceEntry is the payload scheduled when a LocalServer
// instance is withdrawn.
type StopOfferServiceEntry struct {
	Service  sdtypes.ServiceId
	Instance sdtypes.InstanceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
}

// localClientHandle is one RequestService subscription owned by this
// Application: it is both the rsi.AppNotifier the RSI fans SD-state
// changes out to, and the router.LocalClient the Receive Router forwards
// method responses and events to.
type localClientHandle struct {
	clientID sdtypes.ClientId
	instance sdtypes.ServiceInstanceId
	rsiKey   rsi.Key
	send     *router.SendRouter
}

// OnStartOfferServiceInstance implements rsi.AppNotifier.
func (h *localClientHandle) OnStartOfferServiceInstance(instance sdtypes.ServiceInstanceId, _ sdclient.ActiveOffer) {
	h.send.OnStartOfferServiceInstance(instance)
}

// OnStopOfferServiceInstance implements rsi.AppNotifier.
func (h *localClientHandle) OnStopOfferServiceInstance(instance sdtypes.ServiceInstanceId) {
	h.send.OnStopOfferServiceInstance(instance)
}

// OnSubscriptionStateChange implements rsi.AppNotifier.
func (h *localClientHandle) OnSubscriptionStateChange(instance sdtypes.ServiceInstanceId, eg sdtypes.EventgroupId, subscribed bool) {
	h.send.OnSomeIpSubscriptionStateChange(instance, sdtypes.EventId(eg), subscribed)
}

// SendMethodResponse implements router.LocalClient.
func (h *localClientHandle) SendMethodResponse(payload []byte) {
	h.send.OnMethodResponse(uint16(h.instance.Instance), payload)
}

// SendEvent implements router.LocalClient.
func (h *localClientHandle) SendEvent(payload []byte) {
	h.send.OnSomeIpEvent(uint16(h.instance.Instance), payload)
}

// Application is the Application component (C6): the daemon-side state
// for one connected process (spec.md §3 "Application").
type Application struct {
	id     uint64
	logger *slog.Logger

	conn          *ipc.Connection
	receiveRouter *router.ReceiveRouter
	sendRouter    *router.SendRouter
	controller    *control.Controller

	rsiTable     *rsi.Table
	localServers *LocalServerManager
	offerSched   OfferScheduling

	mu          sync.Mutex
	clients     map[sdtypes.ClientId]*localClientHandle
	servedInsts map[sdtypes.ServiceInstanceId]*LocalServerHandle

	onDisconnect func(*Application)
}

// New builds an Application bound to one accepted IPC connection. It
// starts the receive loop immediately; the caller is expected to have
// already registered onDisconnect.
func New(id uint64, c net.Conn, rsiTable *rsi.Table, localServers *LocalServerManager, offerSched OfferScheduling, lookup validator.Lookup, permissions validator.PermissionChecker, tracer trace.Tracer, logger *slog.Logger, onDisconnect func(*Application)) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "application", "app_id", id)

	app := &Application{
		id:           id,
		logger:       logger,
		rsiTable:     rsiTable,
		localServers: localServers,
		offerSched:   offerSched,
		clients:      make(map[sdtypes.ClientId]*localClientHandle),
		servedInsts:  make(map[sdtypes.ServiceInstanceId]*LocalServerHandle),
		onDisconnect: onDisconnect,
	}

	app.conn = ipc.New(c, logger)
	app.sendRouter = router.NewSendRouter(app.conn, tracer, logger)
	app.controller = control.NewController(app, logger)
	app.receiveRouter = router.NewReceiveRouter(validator.New(lookup, permissions), app, app.controller, app.sendRouter, tracer, logger)

	app.conn.StartReceive(app.receiveRouter.Dispatch, app.handleDisconnect)

	return app
}

// ID returns this Application's connection-local identifier, used by the
// admin surface's ListApplications.
func (a *Application) ID() uint64 { return a.id }

// RequestedServiceCount returns the number of live RequestService
// subscriptions this Application currently holds, used by the admin
// surface's ListApplications.
func (a *Application) RequestedServiceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clients)
}

// OfferedServiceCount returns the number of LocalServer instances this
// Application currently owns, used by the admin surface's
// ListApplications.
func (a *Application) OfferedServiceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.servedInsts)
}

func (a *Application) handleDisconnect() {
	a.logger.Info("application disconnected")
	if a.onDisconnect != nil {
		a.onDisconnect(a)
	}
}

// Close tears down every resource this Application held: releases every
// RequestService client from its owning RSI, relinquishes every
// LocalServer instance, and closes the IPC connection (spec.md §4.6, P9
// exactly-once). It does not stop the service discoveries this
// application started with StartServiceDiscovery.
func (a *Application) Close() {
	a.mu.Lock()
	clients := make([]*localClientHandle, 0, len(a.clients))
	for _, c := range a.clients {
		clients = append(clients, c)
	}
	a.clients = make(map[sdtypes.ClientId]*localClientHandle)
	a.servedInsts = make(map[sdtypes.ServiceInstanceId]*LocalServerHandle)
	a.mu.Unlock()

	for _, c := range clients {
		if r, ok := a.rsiTable.Lookup(c.rsiKey); ok {
			r.ReleaseService(c.clientID)
		}
	}
	a.localServers.ReleaseAll(a)

	a.conn.Close()
}

// --- router.Lookups ------------------------------------------------------

// FindLocalServer implements router.Lookups.
func (a *Application) FindLocalServer(instanceID uint16) (router.LocalServer, bool) {
	return a.localServers.Find(instanceID)
}

// FindLocalClient implements router.Lookups.
func (a *Application) FindLocalClient(instanceID uint16) (router.LocalClient, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.clients {
		if uint16(c.instance.Instance) == instanceID {
			return c, true
		}
	}
	return nil, false
}

// --- control.Handlers ----------------------------------------------------

// RequestService implements control.Handlers (spec.md §4.5).
func (a *Application) RequestService(instance sdtypes.ServiceInstanceId) (sdtypes.ClientId, control.ReturnCode) {
	key := rsi.KeyOf(instance)
	r, ok := a.rsiTable.Lookup(key)
	if !ok {
		return 0, control.ReturnCodeRequestServiceRequiredServiceInstanceNotFound
	}

	handle := &localClientHandle{instance: instance, rsiKey: key, send: a.sendRouter}
	id, code := r.RequestService(handle)
	if code != control.ReturnCodeOk {
		return 0, code
	}
	handle.clientID = id

	a.mu.Lock()
	a.clients[id] = handle
	a.mu.Unlock()

	return id, control.ReturnCodeOk
}

// ReleaseService implements control.Handlers.
func (a *Application) ReleaseService(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId) control.ReturnCode {
	a.mu.Lock()
	c, ok := a.clients[clientID]
	if ok {
		delete(a.clients, clientID)
	}
	a.mu.Unlock()
	if !ok {
		return control.ReturnCodeNotOk
	}

	r, ok := a.rsiTable.Lookup(c.rsiKey)
	if !ok {
		return control.ReturnCodeNotOk
	}
	return r.ReleaseService(clientID)
}

// RequestLocalServer implements control.Handlers.
func (a *Application) RequestLocalServer(instance sdtypes.ServiceInstanceId) control.ReturnCode {
	handle, code := a.localServers.Acquire(instance, a, a.sendRouter)
	if code != control.ReturnCodeOk {
		return code
	}

	a.mu.Lock()
	a.servedInsts[instance] = handle
	a.mu.Unlock()

	return control.ReturnCodeOk
}

// ReleaseLocalServer implements control.Handlers.
func (a *Application) ReleaseLocalServer(instance sdtypes.ServiceInstanceId) {
	a.mu.Lock()
	delete(a.servedInsts, instance)
	a.mu.Unlock()
	a.localServers.Release(instance, a)
}

// OfferService implements control.Handlers: announces availability of a
// previously-requested LocalServer instance on the network, arming the
// server-side SM's repetition phase (base*2^k for k=0..RepetitionCount-1)
// which transitions into cyclic multicast once it completes (spec.md
// §4.5, §4.9.1 "server SM").
func (a *Application) OfferService(instance sdtypes.ServiceInstanceId) {
	a.logger.Debug("offer service", "instance", instance)
	a.scheduleOffer(instance)
}

// StopOfferService implements control.Handlers: withdraws a LocalServer
// instance, cancelling any pending repetition/cyclic schedule and sending
// an immediate StopOfferService.
func (a *Application) StopOfferService(instance sdtypes.ServiceInstanceId) {
	a.logger.Debug("stop offer service", "instance", instance)
	a.scheduleStopOffer(instance)
}

func (a *Application) scheduleOffer(instance sdtypes.ServiceInstanceId) {
	sched := a.offerSched.Scheduler
	if sched == nil {
		return
	}

	build := func(int) sdscheduler.Entry {
		return OfferServiceEntry{
			Service:  instance.Service,
			Instance: instance.Instance,
			Major:    instance.Major,
			Minor:    instance.Minor,
			TTL:      a.offerSched.TTL,
			Endpoint: a.offerSched.Endpoint,
		}
	}

	key := sdscheduler.EntryKey{Channel: "offer-service", ID: instance.String()}
	postAction := func() {
		sched.ScheduleCyclic(key, a.offerSched.Target, a.offerSched.CyclicDelay, func() sdscheduler.Entry { return build(0) })
	}
	sched.ScheduleRepetition(key, a.offerSched.Target, a.offerSched.RepetitionBase, a.offerSched.RepetitionCount, build, postAction)
}

func (a *Application) scheduleStopOffer(instance sdtypes.ServiceInstanceId) {
	sched := a.offerSched.Scheduler
	if sched == nil {
		return
	}

	sched.Unschedule(sdscheduler.EntryKey{Channel: "offer-service", ID: instance.String()})

	entry := StopOfferServiceEntry{
		Service:  instance.Service,
		Instance: instance.Instance,
		Major:    instance.Major,
		Minor:    instance.Minor,
	}
	key := sdscheduler.EntryKey{Channel: "stop-offer-service", ID: instance.String()}
	sched.ScheduleImmediate(key, a.offerSched.Target, entry)
}

// SubscribeEvent implements control.Handlers.
func (a *Application) SubscribeEvent(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId, eg sdtypes.EventgroupId) control.ReturnCode {
	r, ok := a.rsiTable.Lookup(rsi.KeyOf(instance))
	if !ok {
		return control.ReturnCodeNotOk
	}
	return r.SubscribeEvent(clientID, instance.Instance, eg)
}

// UnsubscribeEvent implements control.Handlers.
func (a *Application) UnsubscribeEvent(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId, eg sdtypes.EventgroupId) {
	r, ok := a.rsiTable.Lookup(rsi.KeyOf(instance))
	if ok {
		r.UnsubscribeEvent(clientID, instance.Instance, eg)
	}
}

// StartServiceDiscovery implements control.Handlers.
func (a *Application) StartServiceDiscovery(instance sdtypes.ServiceInstanceId) control.ReturnCode {
	r, ok := a.rsiTable.Lookup(rsi.KeyOf(instance))
	if !ok {
		return control.ReturnCodeNotOk
	}
	return r.StartServiceDiscovery()
}

// StopServiceDiscovery implements control.Handlers.
func (a *Application) StopServiceDiscovery(instance sdtypes.ServiceInstanceId) {
	r, ok := a.rsiTable.Lookup(rsi.KeyOf(instance))
	if ok {
		r.StopServiceDiscovery()
	}
}
