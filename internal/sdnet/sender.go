package sdnet

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/someipd/someipd/internal/application"
	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/sdclient"
	"github.com/someipd/someipd/internal/sdmessage"
	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdscheduler"
)

// ErrUnknownEntryType indicates SendSdMessage was handed an Entry whose
// concrete type this package does not know how to place on the wire.
var ErrUnknownEntryType = errors.New("sdnet: unknown scheduled entry type")

// ttlSeconds converts a Duration to the wire TTL field.
func ttlSeconds(ttl time.Duration) uint32 {
	return uint32(ttl / time.Second)
}

// appendEndpoint records ep in the message-level option array and returns
// the Run1 index referencing it, the shared plumbing every entry kind that
// carries an endpoint needs (spec.md §6 "option indexing in range").
func appendEndpoint(opts *[]entries.Option, ep entries.Option) []int {
	idx := len(*opts)
	*opts = append(*opts, ep)
	return []int{idx}
}

// toRawEntry converts one scheduler-side outbound entry into the wire
// envelope's entries.RawEntry shape, appending any referenced endpoint to
// opts. FindService carries no endpoint (spec.md §4.9.2); OfferService and
// SubscribeEventgroup each reference exactly one.
func toRawEntry(e sdscheduler.Entry, opts *[]entries.Option) (entries.RawEntry, error) {
	switch v := e.(type) {
	case sdclient.FindServiceEntry:
		return entries.RawEntry{
			Kind:       entries.TypeFindService,
			Service:    v.Service,
			Instance:   v.Instance,
			Major:      v.Major,
			Minor:      v.Minor,
			TTLSeconds: ttlSeconds(v.TTL),
		}, nil

	case application.OfferServiceEntry:
		run := appendEndpoint(opts, entries.Option{Endpoint: v.Endpoint})
		return entries.RawEntry{
			Kind:       entries.TypeOfferService,
			Service:    v.Service,
			Instance:   v.Instance,
			Major:      v.Major,
			Minor:      v.Minor,
			TTLSeconds: ttlSeconds(v.TTL),
			Run1:       run,
		}, nil

	case application.StopOfferServiceEntry:
		return entries.RawEntry{
			Kind:     entries.TypeStopOfferService,
			Service:  v.Service,
			Instance: v.Instance,
			Major:    v.Major,
			Minor:    v.Minor,
		}, nil

	case rsi.SubscribeEventgroupEntry:
		run := appendEndpoint(opts, entries.Option{Endpoint: v.Endpoint})
		return entries.RawEntry{
			Kind:       entries.TypeSubscribeEventgroup,
			Service:    v.Service,
			Instance:   v.Instance,
			Major:      v.Major,
			Eventgroup: v.Eventgroup,
			TTLSeconds: ttlSeconds(v.TTL),
			Run1:       run,
		}, nil

	case rsi.StopSubscribeEventgroupEntry:
		return entries.RawEntry{
			Kind:       entries.TypeStopSubscribeEventgroup,
			Service:    v.Service,
			Instance:   v.Instance,
			Major:      v.Major,
			Eventgroup: v.Eventgroup,
		}, nil

	case sdmessage.NackEntry:
		return entries.RawEntry{
			Kind:       entries.TypeSubscribeEventgroupNack,
			Service:    v.Service,
			Instance:   v.Instance,
			Major:      v.Major,
			Eventgroup: v.Eventgroup,
			Counter:    v.Counter,
		}, nil

	default:
		return entries.RawEntry{}, fmt.Errorf("%w: %T", ErrUnknownEntryType, e)
	}
}

// Sender implements sdscheduler.Sender over a pair of sockets: one bound
// to the multicast group, one for unicast replies. It is the direct
// descendant of the teacher's netio.UDPSender, generalized from a single
// BFD peer connection to resolving per-Target destinations.
type Sender struct {
	multicast *UDPConn
	unicast   *UDPConn
	groupAddr netip.AddrPort
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSender builds a Sender from the daemon's already-open multicast and
// unicast sockets.
func NewSender(multicast, unicast *UDPConn, groupAddr netip.AddrPort, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		multicast: multicast,
		unicast:   unicast,
		groupAddr: groupAddr,
		logger:    logger.With(slog.String("component", "sdnet.sender")),
	}
}

// SendSdMessage implements sdscheduler.Sender: convert entries to the
// wire envelope and write them to target's multicast group or unicast
// peer.
func (s *Sender) SendSdMessage(target sdscheduler.Target, batch []sdscheduler.Entry) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	raw := make([]entries.RawEntry, 0, len(batch))
	var opts []entries.Option
	for _, e := range batch {
		r, err := toRawEntry(e, &opts)
		if err != nil {
			s.logger.Error("drop unencodable entry", slog.String("error", err.Error()))
			continue
		}
		raw = append(raw, r)
	}
	if len(raw) == 0 {
		return
	}

	payload, err := EncodeMessage(sdmessage.Message{Entries: raw, Options: opts})
	if err != nil {
		s.logger.Error("encode sd message", slog.String("error", err.Error()))
		return
	}

	conn := s.unicast
	dst := s.groupAddr
	if target.Multicast {
		conn = s.multicast
	} else if addr, err := netip.ParseAddr(target.Addr); err == nil {
		dst = netip.AddrPortFrom(addr, target.Port)
	} else {
		s.logger.Error("invalid unicast target", slog.String("addr", target.Addr), slog.String("error", err.Error()))
		return
	}
	if conn == nil {
		s.logger.Warn("no socket available for target", slog.Bool("multicast", target.Multicast))
		return
	}

	if err := conn.WritePacket(payload, dst); err != nil {
		s.logger.Warn("send sd message failed", slog.String("dst", dst.String()), slog.String("error", err.Error()))
	}
}

// Close closes both sockets.
func (s *Sender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.multicast != nil {
		if err := s.multicast.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.unicast != nil {
		if err := s.unicast.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("sdnet: close sender: %w", errors.Join(errs...))
}
