// Package sdtypes defines the SOME/IP wire identifiers and the entity
// types shared by every core component: service/instance identity,
// version matching, and the well-known wildcard values.
package sdtypes

import "fmt"

// ServiceId, InstanceId, EventId, MethodId, ClientId, and EventgroupId are
// all 16-bit SOME/IP wire identifiers.
type (
	ServiceId    uint16
	InstanceId   uint16
	EventId      uint16
	MethodId     uint16
	ClientId     uint16
	EventgroupId uint16
)

// MajorVersion and MinorVersion are the SOME/IP service version fields.
type (
	MajorVersion uint8
	MinorVersion uint32
)

const (
	// InstanceIdAll is the reserved instance id meaning "any instance of
	// this service" (spec.md Glossary: "Instance id ALL / wildcard").
	InstanceIdAll InstanceId = 0xFFFF

	// MinorVersionAny is the reserved minor version value meaning "accept
	// any minor version" under the ExactOrAnyMinorVersion policy.
	MinorVersionAny MinorVersion = 0xFFFFFFFF
)

// MinorVersionPolicy selects how a configured minor version is matched
// against an incoming OfferService entry's minor version (spec.md §4.9.1).
type MinorVersionPolicy uint8

const (
	// MinimumMinorVersion accepts any entry.minor >= configured.minor.
	MinimumMinorVersion MinorVersionPolicy = iota
	// ExactOrAnyMinorVersion accepts configured.minor == MinorVersionAny,
	// or an exact match.
	ExactOrAnyMinorVersion
)

// ServiceInstanceId is the full identity tuple of a service instance.
type ServiceInstanceId struct {
	Service  ServiceId
	Major    MajorVersion
	Minor    MinorVersion
	Instance InstanceId
}

// Dummy returns the "dummy minor-version" lookup key form
// (ServiceId, MajorVersion, 0, InstanceId) used once communication is
// established, per spec.md §3: minor-version is a compatibility
// criterion, not an identity criterion.
func (s ServiceInstanceId) Dummy() ServiceInstanceId {
	return ServiceInstanceId{Service: s.Service, Major: s.Major, Minor: 0, Instance: s.Instance}
}

func (s ServiceInstanceId) String() string {
	return fmt.Sprintf("%04x.%d.%d.%04x", uint16(s.Service), s.Major, s.Minor, uint16(s.Instance))
}

// MatchesOffer reports whether an incoming offer's
// (service, major, instance, minor) matches this configured instance
// under the given minor-version policy (spec.md §4.9.1).
func MatchesOffer(configured ServiceInstanceId, policy MinorVersionPolicy, offerMinor MinorVersion, offerMajor MajorVersion, offerService ServiceId, offerInstance InstanceId) bool {
	if configured.Service != offerService || configured.Major != offerMajor {
		return false
	}
	if configured.Instance != InstanceIdAll && configured.Instance != offerInstance {
		return false
	}

	switch policy {
	case MinimumMinorVersion:
		return offerMinor >= configured.Minor
	case ExactOrAnyMinorVersion:
		return configured.Minor == MinorVersionAny || offerMinor == configured.Minor
	default:
		return false
	}
}

// Endpoint is a transport endpoint (UDP or TCP) referenced by an offer or
// configuration entry.
type Endpoint struct {
	Address string
	Port    uint16
	TCP     bool
}
