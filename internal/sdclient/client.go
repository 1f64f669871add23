package sdclient

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

// ActiveOffer is the currently accepted offer for a specific-instance SD
// client (spec.md §3 "ActiveOfferServiceEntry"). At most one exists at
// any time per Client (P2).
type ActiveOffer struct {
	Peer      reboot.PeerKey
	EntryID   uint32
	TTL       time.Duration
	Multicast bool
	Endpoints []sdtypes.Endpoint
}

// Listener is the RSI's application-facing side (spec.md §9 "Observer
// graphs without cycles": a back-reference, not ownership).
type Listener interface {
	OnServiceUp(instance sdtypes.ServiceInstanceId, offer ActiveOffer)
	OnServiceDown(instance sdtypes.ServiceInstanceId)
}

// RemoteServerObserver is the remote-server side observer notified of
// offer renewals in addition to the Listener (spec.md §9).
type RemoteServerObserver interface {
	OnOfferRenewed(instance sdtypes.ServiceInstanceId, isMulticast bool)
}

// Config configures one Client (spec.md §3 RSI "SD timing config").
type Config struct {
	Instance        sdtypes.ServiceInstanceId
	Policy          sdtypes.MinorVersionPolicy
	InitialMin      time.Duration
	InitialMax      time.Duration
	RepetitionBase  time.Duration
	RepetitionCount int
	FindServiceTTL  time.Duration
}

// Client is the per-RSI goroutine implementing the SD Client State
// Machine (C9). It owns its FSM state, its deadline timers, and its
// ActiveOffer, and is driven exclusively through its event channel — the
// Go translation of "one reactor thread, no locks inside the core" (see
// SPEC_FULL.md §1.1). Grounded on the teacher's bfd.Session goroutine.
type Client struct {
	cfg       Config
	scheduler *sdscheduler.Scheduler
	sendTo    sdscheduler.Target
	listener  Listener
	observer  RemoteServerObserver
	logger    *slog.Logger

	events chan func()
	stop   chan struct{}
	done   chan struct{}

	// Fields below are owned exclusively by run(); no lock needed.
	state            State
	repetitionStep   int
	networkUp        bool
	serviceRequested bool
	activeOffer      *ActiveOffer

	initialWaitTimer *time.Timer
	repetitionTimer  *time.Timer
	ttlTimer         *time.Timer
}

// New creates a Client in StateStopped. Call Start to arm it.
func New(cfg Config, scheduler *sdscheduler.Scheduler, target sdscheduler.Target, listener Listener, observer RemoteServerObserver, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg,
		scheduler: scheduler,
		sendTo:    target,
		listener:  listener,
		observer:  observer,
		logger:    logger.With("component", "sdclient", "instance", cfg.Instance.String()),
		events:    make(chan func(), 32),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     StateStopped,
	}

	go c.run()

	return c
}

// Close stops the goroutine and releases its timers. Closing an already
// closed Client is a no-op.
func (c *Client) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.stop)
	<-c.done
}

func (c *Client) run() {
	defer close(c.done)

	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.timerC(&c.initialWaitTimer):
			c.handle(EventTimeout)
		case <-c.timerC(&c.repetitionTimer):
			c.handle(EventTimeout)
		case <-c.timerC(&c.ttlTimer):
			c.clearOffer()
		case <-c.stop:
			c.cancelAllTimers()
			return
		}
	}
}

// timerC returns the timer's channel, or nil (which blocks forever in a
// select) if the timer is not currently armed.
func (c *Client) timerC(t **time.Timer) <-chan time.Time {
	if *t == nil {
		return nil
	}
	return (*t).C
}

// post submits fn to run on the Client's own goroutine and blocks until
// it has executed, giving callers (the RSI, the SD message processor)
// synchronous request/response semantics without sharing state.
func (c *Client) post(fn func()) {
	done := make(chan struct{})
	select {
	case c.events <- func() { fn(); close(done) }:
		<-done
	case <-c.done:
	}
}

// Start arms the client (control command StartServiceDiscovery).
func (c *Client) Start() { c.post(func() { c.handle(EventSdStart) }) }

// Stop disarms the client (control command StopServiceDiscovery).
func (c *Client) Stop() { c.post(func() { c.handle(EventSdStop) }) }

// OnNetworkUp/OnNetworkDown are the network-activation events (spec.md §4.9).
func (c *Client) OnNetworkUp() {
	c.post(func() { c.networkUp = true; c.handle(EventNetworkUp) })
}

func (c *Client) OnNetworkDown() {
	c.post(func() { c.networkUp = false; c.handle(EventNetworkDown) })
}

// RequestService records that the application requires this service.
func (c *Client) RequestService() {
	c.post(func() { c.serviceRequested = true; c.handle(EventServiceRequested) })
}

// ReleaseService records that no application requires this service
// anymore.
func (c *Client) ReleaseService() {
	c.post(func() { c.serviceRequested = false; c.handle(EventServiceReleased) })
}

// CurrentOffer returns the active offer, if any, read on the Client's own
// goroutine.
func (c *Client) CurrentOffer() (offer ActiveOffer, ok bool) {
	c.post(func() {
		if c.activeOffer != nil {
			offer, ok = *c.activeOffer, true
		}
	})
	return offer, ok
}

// OnOfferServiceEntry processes an incoming OfferService entry
// (spec.md §4.9 "Offer intake"). The caller has already checked the offer
// with sdtypes.MatchesOffer. The endpoints are taken as given; they are
// not checked against configuration. An offer that arrives while the
// client is Down or Stopped is discarded.
func (c *Client) OnOfferServiceEntry(peer reboot.PeerKey, entryID uint32, ttl time.Duration, isMulticast bool, endpoints []sdtypes.Endpoint) {
	c.post(func() {
		switch {
		case c.activeOffer == nil:
			c.activeOffer = &ActiveOffer{Peer: peer, EntryID: entryID, TTL: ttl, Multicast: isMulticast, Endpoints: endpoints}
			c.armTTL(ttl)
			c.handle(EventOfferService)
			if c.activeOffer == nil {
				// handle dropped the offer: the client is Down or Stopped.
				return
			}
			if c.listener != nil {
				c.listener.OnServiceUp(c.cfg.Instance, *c.activeOffer)
			}
			if c.observer != nil {
				c.observer.OnOfferRenewed(c.cfg.Instance, isMulticast)
			}
		case c.activeOffer.Peer == peer && c.activeOffer.EntryID == entryID:
			// Renewal (P4): re-arm TTL, notify remote server, do not
			// re-notify the listener.
			c.activeOffer.TTL = ttl
			c.armTTL(ttl)
			if c.observer != nil {
				c.observer.OnOfferRenewed(c.cfg.Instance, isMulticast)
			}
		default:
			// An active offer exists and does not match: no preemption.
		}
	})
}

// OnStopOfferServiceEntry processes an incoming StopOfferService entry.
func (c *Client) OnStopOfferServiceEntry(peer reboot.PeerKey, entryID uint32) {
	c.post(func() {
		if c.activeOffer != nil && c.activeOffer.Peer == peer && c.activeOffer.EntryID == entryID {
			c.clearOffer()
		}
	})
}

// OnReboot clears the active offer if it was sourced from the rebooted
// peer (spec.md §4.9 "Reboot intake", P5).
func (c *Client) OnReboot(peer reboot.PeerKey) {
	c.post(func() {
		if c.activeOffer != nil && c.activeOffer.Peer == peer {
			c.clearOffer()
		}
	})
}

// State returns the current FSM state, for tests and the admin surface.
func (c *Client) State() State {
	var s State
	c.post(func() { s = c.state })
	return s
}

func (c *Client) clearOffer() {
	c.activeOffer = nil
	c.cancelTimer(&c.ttlTimer)
	c.handle(EventOfferTtlExpired)
	if c.listener != nil {
		c.listener.OnServiceDown(c.cfg.Instance)
	}
}

func (c *Client) armTTL(ttl time.Duration) {
	c.cancelTimer(&c.ttlTimer)
	if ttl <= 0 {
		return // infinite TTL: never expires
	}
	c.ttlTimer = time.NewTimer(ttl)
}

func (c *Client) handle(event Event) {
	guards := Guards{
		NetworkUp:        c.networkUp,
		ServiceRequested: c.serviceRequested,
		ServiceAvailable: c.activeOffer != nil,
	}

	res := ApplyEvent(c.state, event, guards, c.repetitionStep, c.cfg.RepetitionCount)
	old := c.state
	c.state = res.NewState
	c.repetitionStep = res.RepetitionStep

	if res.Changed {
		c.logger.Debug("state transition", "from", old, "to", res.NewState, "event", event)
	}

	for _, action := range res.Actions {
		c.execute(action)
	}

	// Down/Stopped means no offer is tracked for this client anymore; the
	// TTL timer and any stale ActiveOffer belong only to Main/InitialWait/
	// Repetition. This is separate from ActionCancelTimer (which only
	// cancels the initial-wait/repetition timers used while searching).
	if res.NewState == StateDown || res.NewState == StateStopped {
		c.cancelTimer(&c.ttlTimer)
		c.activeOffer = nil
	}
}

func (c *Client) execute(action Action) {
	switch action {
	case ActionArmInitialWaitTimer:
		c.cancelTimer(&c.initialWaitTimer)
		c.initialWaitTimer = time.NewTimer(jitterWindow(c.cfg.InitialMin, c.cfg.InitialMax))
	case ActionArmRepetitionTimer:
		c.cancelTimer(&c.repetitionTimer)
		delay := c.cfg.RepetitionBase * time.Duration(1<<uint(c.repetitionStep))
		c.repetitionTimer = time.NewTimer(delay)
	case ActionSendFindService:
		c.sendFindService()
	case ActionCancelTimer:
		c.cancelTimer(&c.initialWaitTimer)
		c.cancelTimer(&c.repetitionTimer)
	}
}

// sendFindService hands a FindService entry to the shared scheduler for
// batching with whatever else fires in this dispatch pass (spec.md §4.9.2, §4.12).
func (c *Client) sendFindService() {
	if c.scheduler == nil {
		return
	}
	minorToSend := c.cfg.Instance.Minor
	if c.cfg.Policy == sdtypes.MinimumMinorVersion {
		minorToSend = sdtypes.MinorVersionAny
	}
	entry := FindServiceEntry{
		Service:  c.cfg.Instance.Service,
		Major:    c.cfg.Instance.Major,
		Minor:    minorToSend,
		Instance: c.cfg.Instance.Instance,
		TTL:      c.cfg.FindServiceTTL,
	}
	key := sdscheduler.EntryKey{Channel: "find-service", ID: c.cfg.Instance.String()}
	c.scheduler.ScheduleImmediate(key, c.sendTo, entry)
}

func (c *Client) cancelTimer(t **time.Timer) {
	if *t == nil {
		return
	}
	(*t).Stop()
	*t = nil
}

func (c *Client) cancelAllTimers() {
	c.cancelTimer(&c.initialWaitTimer)
	c.cancelTimer(&c.repetitionTimer)
	c.cancelTimer(&c.ttlTimer)
}

// FindServiceEntry is the payload scheduled for transmission when the SD
// client decides to send a FindService entry (spec.md §4.9.2).
type FindServiceEntry struct {
	Service  sdtypes.ServiceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
	Instance sdtypes.InstanceId
	TTL      time.Duration
}

// jitterWindow picks a uniformly random delay in [min, max], the direct
// expression of spec.md §4.9's "a uniformly random delay is armed".
func jitterWindow(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	span := maxDelay - minDelay
	return minDelay + time.Duration(rand.Int64N(int64(span)+1)) //nolint:gosec // jitter does not require cryptographic randomness
}
