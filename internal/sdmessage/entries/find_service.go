package entries

import "github.com/someipd/someipd/internal/sdtypes"

// FindServiceEntry is the interpreted form of a FindService entry. It
// never carries options.
type FindServiceEntry struct {
	Service  sdtypes.ServiceId
	Instance sdtypes.InstanceId
	Major    sdtypes.MajorVersion
	Minor    sdtypes.MinorVersion
}

// InterpretFindService interprets a FindService entry.
func InterpretFindService(raw RawEntry, options []Option) (FindServiceEntry, error) {
	if raw.Kind != TypeFindService {
		return FindServiceEntry{}, ErrWrongEntryType
	}
	if len(raw.Run1) > 0 || len(raw.Run2) > 0 {
		return FindServiceEntry{}, ErrNotAllowedOption
	}

	return FindServiceEntry{
		Service:  raw.Service,
		Instance: raw.Instance,
		Major:    raw.Major,
		Minor:    raw.Minor,
	}, nil
}
