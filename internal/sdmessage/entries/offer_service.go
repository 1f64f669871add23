package entries

import "github.com/someipd/someipd/internal/sdtypes"

// OfferServiceEntry is the interpreted form of a SOME/IP-SD OfferService
// entry, grounded on original_source's OfferServiceEntryInterpreter.
type OfferServiceEntry struct {
	Service  sdtypes.ServiceId
	Instance sdtypes.InstanceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
	TTL      RawEntry
	UDP      *sdtypes.Endpoint
	TCP      *sdtypes.Endpoint
}

// InterpretOfferService validates and interprets an OfferService entry:
// it must carry at least one endpoint and the two transports may not
// contradict each other.
func InterpretOfferService(raw RawEntry, options []Option) (OfferServiceEntry, error) {
	if raw.Kind != TypeOfferService {
		return OfferServiceEntry{}, ErrWrongEntryType
	}

	udp, tcp, err := endpoints(options, raw.Run1, raw.Run2)
	if err != nil {
		return OfferServiceEntry{}, err
	}
	if udp == nil && tcp == nil {
		return OfferServiceEntry{}, ErrNotAllowedOption
	}

	return OfferServiceEntry{
		Service:  raw.Service,
		Instance: raw.Instance,
		Major:    raw.Major,
		Minor:    raw.Minor,
		TTL:      raw,
		UDP:      udp,
		TCP:      tcp,
	}, nil
}

// StopOfferServiceEntry is the interpreted form of a StopOfferService
// entry. It never carries endpoints.
type StopOfferServiceEntry struct {
	Service  sdtypes.ServiceId
	Instance sdtypes.InstanceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
}

// InterpretStopOfferService interprets a StopOfferService entry. Any
// referenced option is a protocol error: endpoints are not meaningful for
// a withdrawal.
func InterpretStopOfferService(raw RawEntry, options []Option) (StopOfferServiceEntry, error) {
	if raw.Kind != TypeStopOfferService {
		return StopOfferServiceEntry{}, ErrWrongEntryType
	}
	if len(raw.Run1) > 0 || len(raw.Run2) > 0 {
		return StopOfferServiceEntry{}, ErrNotAllowedOption
	}

	return StopOfferServiceEntry{
		Service:  raw.Service,
		Instance: raw.Instance,
		Major:    raw.Major,
		Minor:    raw.Minor,
	}, nil
}
