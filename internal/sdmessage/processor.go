// Package sdmessage implements the SD Message Processor (C11):
// reboot-detect, then interpret, then dispatch each entry of an incoming
// SOME/IP-SD message to the owning RSI (spec.md §4.11).
package sdmessage

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

// Message is one decoded SOME/IP-SD message.
type Message struct {
	SessionID  uint16
	RebootFlag bool
	Entries    []entries.RawEntry
	Options    []entries.Option
}

// Stats counts protocol violations and drops, consumed by the metrics
// collector.
type Stats interface {
	IncDropped(entryType entries.Type, reason error)
}

// RebootObserver is notified before a message's entries are processed
// when its sender has just rebooted, so that stale per-peer state clears
// first (spec.md §4.11 step 1).
type RebootObserver interface {
	OnReboot(peer reboot.PeerKey)
}

// Sink is implemented by the RSI table: it resolves the RSI owning a
// given (service, major, instance) and forwards interpreted entries to
// it, for both the client-discovery entries (OfferService/
// StopOfferService, spec.md §4.9-§4.10) and the subscription-side
// entries whose owning RSI tracks the matching RemoteServer
// (SubscribeEventgroupAck/Nack acknowledge a subscription the RSI
// itself sent; SubscribeEventgroup/StopSubscribeEventgroup target a
// locally-offered instance and are forwarded for observability even
// though this daemon has no provided-side subscriber registry to act on
// them yet, per spec.md §4.11 step 3).
type Sink interface {
	OnOfferServiceEntry(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32, offer entries.OfferServiceEntry, isMulticast bool)
	OnStopOfferServiceEntry(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32)
	OnSubscribeEventgroupEntry(sub entries.SubscribeEventgroupEntry, peer reboot.PeerKey, entryID uint32)
	OnStopSubscribeEventgroupEntry(stop entries.StopSubscribeEventgroupEntry, peer reboot.PeerKey, entryID uint32)
	OnSubscribeEventgroupAck(ack entries.SubscribeEventgroupAckEntry, peer reboot.PeerKey, entryID uint32)
	OnSubscribeEventgroupNack(nack entries.SubscribeEventgroupNackEntry, peer reboot.PeerKey, entryID uint32)
}

// Processor is the SD Message Processor (C11).
type Processor struct {
	reboot *reboot.Detector
	sink   Sink
	stats  Stats
	logger *slog.Logger

	rebootObservers []RebootObserver

	mu        sync.Mutex
	scheduler *sdscheduler.Scheduler
	sendTo    sdscheduler.Target
}

// New constructs a Processor.
func New(detector *reboot.Detector, sink Sink, stats Stats, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{reboot: detector, sink: sink, stats: stats, logger: logger.With("component", "sdmessage")}
}

// AddRebootObserver registers an observer notified on every detected
// reboot, before the triggering message's entries are processed.
func (p *Processor) AddRebootObserver(o RebootObserver) {
	p.rebootObservers = append(p.rebootObservers, o)
}

// SetNackScheduler arms this Processor to schedule a
// SubscribeEventgroupNack whenever an incoming SubscribeEventgroup entry
// fails interpretation (spec.md §4.11 step 3, §7). Without it, malformed
// Subscribes are only logged and counted.
func (p *Processor) SetNackScheduler(scheduler *sdscheduler.Scheduler, target sdscheduler.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduler = scheduler
	p.sendTo = target
}

// OnSdMessageReceived is the C11 entry point (spec.md §4.11).
func (p *Processor) OnSdMessageReceived(peer reboot.PeerKey, isMulticast bool, msg Message) {
	if p.reboot.Observe(peer, isMulticast, msg.SessionID, msg.RebootFlag) {
		p.logger.Info("reboot detected", "peer", peer)
		for _, o := range p.rebootObservers {
			o.OnReboot(peer)
		}
	}

	var entryID uint32
	for _, raw := range msg.Entries {
		p.processEntry(peer, isMulticast, entryID, raw, msg.Options)
		entryID++
	}
}

func (p *Processor) processEntry(peer reboot.PeerKey, isMulticast bool, entryID uint32, raw entries.RawEntry, options []entries.Option) {
	switch raw.Kind {
	case entries.TypeOfferService:
		offer, err := entries.InterpretOfferService(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			return
		}
		p.sink.OnOfferServiceEntry(raw.Service, raw.Major, raw.Instance, peer, entryID, offer, isMulticast)

	case entries.TypeStopOfferService:
		stop, err := entries.InterpretStopOfferService(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			return
		}
		p.sink.OnStopOfferServiceEntry(stop.Service, stop.Major, stop.Instance, peer, entryID)

	case entries.TypeFindService:
		if _, err := entries.InterpretFindService(raw, options); err != nil {
			p.drop(raw.Kind, err)
		}
		// Server-side FindService handling (answering with OfferService)
		// belongs to the LocalServerManager, not this client-facing
		// processor; interpretation-only here still enforces P10-style
		// option validation on the wire.

	case entries.TypeSubscribeEventgroup, entries.TypeStopSubscribeEventgroup,
		entries.TypeSubscribeEventgroupAck, entries.TypeSubscribeEventgroupNack:
		p.interpretSubscriptionEntry(peer, entryID, raw, options)

	default:
		p.drop(raw.Kind, entries.ErrWrongEntryType)
	}
}

func (p *Processor) interpretSubscriptionEntry(peer reboot.PeerKey, entryID uint32, raw entries.RawEntry, options []entries.Option) {
	switch raw.Kind {
	case entries.TypeSubscribeEventgroup:
		sub, err := entries.InterpretSubscribeEventgroup(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			p.scheduleNack(raw)
			return
		}
		p.sink.OnSubscribeEventgroupEntry(sub, peer, entryID)

	case entries.TypeStopSubscribeEventgroup:
		stop, err := entries.InterpretStopSubscribeEventgroup(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			return
		}
		p.sink.OnStopSubscribeEventgroupEntry(stop, peer, entryID)

	case entries.TypeSubscribeEventgroupAck:
		ack, err := entries.InterpretSubscribeEventgroupAck(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			return
		}
		p.sink.OnSubscribeEventgroupAck(ack, peer, entryID)

	case entries.TypeSubscribeEventgroupNack:
		nack, err := entries.InterpretSubscribeEventgroupNack(raw, options)
		if err != nil {
			p.drop(raw.Kind, err)
			return
		}
		p.sink.OnSubscribeEventgroupNack(nack, peer, entryID)
	}
}

// scheduleNack arms a SubscribeEventgroupNack in response to a malformed
// SubscribeEventgroup entry (spec.md §4.11 step 3, §7). A no-op until
// SetNackScheduler has been called.
func (p *Processor) scheduleNack(raw entries.RawEntry) {
	p.mu.Lock()
	scheduler := p.scheduler
	target := p.sendTo
	p.mu.Unlock()
	if scheduler == nil {
		return
	}

	entry := NackEntry{
		Service:    raw.Service,
		Instance:   raw.Instance,
		Major:      raw.Major,
		Eventgroup: raw.Eventgroup,
		Counter:    raw.Counter,
	}
	key := sdscheduler.EntryKey{Channel: "subscribe-nack", ID: fmt.Sprintf("%d-%d-%d", raw.Service, raw.Instance, raw.Eventgroup)}
	scheduler.ScheduleImmediate(key, target, entry)
}

// NackEntry is the payload scheduled for transmission when this processor
// rejects a malformed SubscribeEventgroup entry.
type NackEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	Counter    uint8
}

func (p *Processor) drop(entryType entries.Type, err error) {
	p.logger.Warn("dropping malformed sd entry", "entry_type", entryType, "reason", err)
	if p.stats != nil {
		p.stats.IncDropped(entryType, err)
	}
}
