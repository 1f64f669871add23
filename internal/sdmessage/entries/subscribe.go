package entries

import "github.com/someipd/someipd/internal/sdtypes"

// SubscribeEventgroupEntry is the interpreted form of a
// SubscribeEventgroup entry, grounded on original_source's
// subscribe_eventgroup_nack_entry_interpreter.h sibling for the
// non-Nack variant.
type SubscribeEventgroupEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	Counter    uint8
	TTL        RawEntry
	UDP        *sdtypes.Endpoint
	TCP        *sdtypes.Endpoint
}

// InterpretSubscribeEventgroup interprets a SubscribeEventgroup entry: it
// must reference at least one endpoint (the subscriber's delivery
// address).
func InterpretSubscribeEventgroup(raw RawEntry, options []Option) (SubscribeEventgroupEntry, error) {
	if raw.Kind != TypeSubscribeEventgroup {
		return SubscribeEventgroupEntry{}, ErrWrongEntryType
	}

	udp, tcp, err := endpoints(options, raw.Run1, raw.Run2)
	if err != nil {
		return SubscribeEventgroupEntry{}, err
	}
	if udp == nil && tcp == nil {
		return SubscribeEventgroupEntry{}, ErrNotAllowedOption
	}

	return SubscribeEventgroupEntry{
		Service:    raw.Service,
		Instance:   raw.Instance,
		Major:      raw.Major,
		Eventgroup: raw.Eventgroup,
		Counter:    raw.Counter,
		TTL:        raw,
		UDP:        udp,
		TCP:        tcp,
	}, nil
}

// StopSubscribeEventgroupEntry is the interpreted form of a
// StopSubscribeEventgroup entry. It never carries endpoints.
type StopSubscribeEventgroupEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	Counter    uint8
}

// InterpretStopSubscribeEventgroup interprets a StopSubscribeEventgroup
// entry.
func InterpretStopSubscribeEventgroup(raw RawEntry, options []Option) (StopSubscribeEventgroupEntry, error) {
	if raw.Kind != TypeStopSubscribeEventgroup {
		return StopSubscribeEventgroupEntry{}, ErrWrongEntryType
	}
	if len(raw.Run1) > 0 || len(raw.Run2) > 0 {
		return StopSubscribeEventgroupEntry{}, ErrNotAllowedOption
	}

	return StopSubscribeEventgroupEntry{
		Service:    raw.Service,
		Instance:   raw.Instance,
		Major:      raw.Major,
		Eventgroup: raw.Eventgroup,
		Counter:    raw.Counter,
	}, nil
}

// SubscribeEventgroupAckEntry is the interpreted form of a
// SubscribeEventgroupAck entry.
type SubscribeEventgroupAckEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	Counter    uint8
	TTL        RawEntry
}

// InterpretSubscribeEventgroupAck interprets a SubscribeEventgroupAck
// entry. It never carries endpoints.
func InterpretSubscribeEventgroupAck(raw RawEntry, options []Option) (SubscribeEventgroupAckEntry, error) {
	if raw.Kind != TypeSubscribeEventgroupAck {
		return SubscribeEventgroupAckEntry{}, ErrWrongEntryType
	}
	if len(raw.Run1) > 0 || len(raw.Run2) > 0 {
		return SubscribeEventgroupAckEntry{}, ErrNotAllowedOption
	}

	return SubscribeEventgroupAckEntry{
		Service:    raw.Service,
		Instance:   raw.Instance,
		Major:      raw.Major,
		Eventgroup: raw.Eventgroup,
		Counter:    raw.Counter,
		TTL:        raw,
	}, nil
}

// SubscribeEventgroupNackEntry is the interpreted form of a
// SubscribeEventgroupNack entry, grounded directly on original_source's
// subscribe_eventgroup_nack_entry_interpreter.h: endpoints may not be
// referenced by a Nack.
type SubscribeEventgroupNackEntry struct {
	Service    sdtypes.ServiceId
	Instance   sdtypes.InstanceId
	Major      sdtypes.MajorVersion
	Eventgroup sdtypes.EventgroupId
	Counter    uint8
}

// InterpretSubscribeEventgroupNack interprets a SubscribeEventgroupNack
// entry; any referenced option is a protocol error.
func InterpretSubscribeEventgroupNack(raw RawEntry, options []Option) (SubscribeEventgroupNackEntry, error) {
	if raw.Kind != TypeSubscribeEventgroupNack {
		return SubscribeEventgroupNackEntry{}, ErrWrongEntryType
	}
	if len(raw.Run1) > 0 || len(raw.Run2) > 0 {
		return SubscribeEventgroupNackEntry{}, ErrNotAllowedOption
	}

	return SubscribeEventgroupNackEntry{
		Service:    raw.Service,
		Instance:   raw.Instance,
		Major:      raw.Major,
		Eventgroup: raw.Eventgroup,
		Counter:    raw.Counter,
	}, nil
}
