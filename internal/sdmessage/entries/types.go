// Package entries interprets decoded SOME/IP-SD entries against their
// referenced options, one interpreter per entry type, grounded on
// original_source's entries/*_interpreter.h split (spec.md §4.11).
package entries

import (
	"errors"
	"time"

	"github.com/someipd/someipd/internal/sdtypes"
)

// Type is the SOME/IP-SD entry type.
type Type uint8

const (
	TypeFindService Type = iota
	TypeOfferService
	TypeStopOfferService
	TypeSubscribeEventgroup
	TypeStopSubscribeEventgroup
	TypeSubscribeEventgroupAck
	TypeSubscribeEventgroupNack
)

func (t Type) String() string {
	switch t {
	case TypeFindService:
		return "FindService"
	case TypeOfferService:
		return "OfferService"
	case TypeStopOfferService:
		return "StopOfferService"
	case TypeSubscribeEventgroup:
		return "SubscribeEventgroup"
	case TypeStopSubscribeEventgroup:
		return "StopSubscribeEventgroup"
	case TypeSubscribeEventgroupAck:
		return "SubscribeEventgroupAck"
	case TypeSubscribeEventgroupNack:
		return "SubscribeEventgroupNack"
	default:
		return "Unknown"
	}
}

// ttlInfinite is the wire TTL value meaning "no expiry".
const ttlInfinite uint32 = 0xFFFFFF

// Option is one decoded SD option. The wire option codec itself is out of
// scope (spec.md §6: "the core consumes an abstract entry/option codec");
// this is that codec's output shape.
type Option struct {
	Endpoint sdtypes.Endpoint
}

// RawEntry is one decoded SD entry before option interpretation: the
// entry-type-independent fields plus indexes into the message's shared
// option run arrays (spec.md §4.11 "option indexing in range").
type RawEntry struct {
	ID         uint32
	Kind       Type
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Minor      sdtypes.MinorVersion
	TTLSeconds uint32
	Eventgroup sdtypes.EventgroupId
	Counter    uint8

	// Run1/Run2 index into the message's Options slice (the two option
	// "runs" a SOME/IP-SD entry may reference).
	Run1 []int
	Run2 []int
}

// TTL converts the wire TTL field, treating the all-ones value as
// infinite.
func (r RawEntry) TTL() time.Duration {
	if r.TTLSeconds == ttlInfinite {
		return 0
	}
	return time.Duration(r.TTLSeconds) * time.Second
}

// Infinite reports whether this entry's TTL is the wire "no expiry" value.
func (r RawEntry) Infinite() bool {
	return r.TTLSeconds == ttlInfinite
}

var (
	// ErrBadIndexing is returned when an option run references an index
	// outside the message's option array.
	ErrBadIndexing = errors.New("sd entry: option index out of range")
	// ErrMalformedAddress is returned when a referenced option's address
	// cannot be interpreted.
	ErrMalformedAddress = errors.New("sd entry: malformed option address")
	// ErrNotAllowedOption is returned when a referenced option type is not
	// permitted for this entry type (e.g. an endpoint referenced by a
	// Nack).
	ErrNotAllowedOption = errors.New("sd entry: option not allowed for entry type")
	// ErrContradictingOptions is returned when two options of the same
	// transport disagree (spec.md §4.11: "conflicting options for the
	// same transport are a protocol error").
	ErrContradictingOptions = errors.New("sd entry: contradicting options for same transport")
	// ErrWrongEntryType is returned when an interpreter is handed an entry
	// of the wrong Kind.
	ErrWrongEntryType = errors.New("sd entry: wrong entry type")
)

// endpoints resolves the TCP and UDP endpoints referenced across both
// option runs of an entry, shared by every interpreter that may carry
// endpoints (OfferService, SubscribeEventgroup).
func endpoints(options []Option, runs ...[]int) (udp, tcp *sdtypes.Endpoint, err error) {
	for _, run := range runs {
		for _, idx := range run {
			if idx < 0 || idx >= len(options) {
				return nil, nil, ErrBadIndexing
			}
			opt := options[idx]
			if opt.Endpoint.Address == "" {
				return nil, nil, ErrMalformedAddress
			}

			if opt.Endpoint.TCP {
				if tcp != nil && *tcp != opt.Endpoint {
					return nil, nil, ErrContradictingOptions
				}
				e := opt.Endpoint
				tcp = &e
			} else {
				if udp != nil && *udp != opt.Endpoint {
					return nil, nil, ErrContradictingOptions
				}
				e := opt.Endpoint
				udp = &e
			}
		}
	}
	return udp, tcp, nil
}
