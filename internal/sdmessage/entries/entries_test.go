package entries_test

import (
	"testing"

	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdtypes"
)

func TestInterpretOfferService_BothEndpoints(t *testing.T) {
	options := []entries.Option{
		{Endpoint: sdtypes.Endpoint{Address: "10.0.0.2", Port: 30500, TCP: false}},
		{Endpoint: sdtypes.Endpoint{Address: "10.0.0.2", Port: 30501, TCP: true}},
	}
	raw := entries.RawEntry{
		Kind: entries.TypeOfferService, Service: 0x1234, Major: 1, Instance: 5,
		TTLSeconds: 30, Run1: []int{0, 1},
	}

	offer, err := entries.InterpretOfferService(raw, options)
	if err != nil {
		t.Fatalf("InterpretOfferService: %v", err)
	}
	if offer.UDP == nil || offer.UDP.Port != 30500 {
		t.Fatalf("UDP endpoint = %v", offer.UDP)
	}
	if offer.TCP == nil || offer.TCP.Port != 30501 {
		t.Fatalf("TCP endpoint = %v", offer.TCP)
	}
}

func TestInterpretOfferService_BadIndexing(t *testing.T) {
	raw := entries.RawEntry{Kind: entries.TypeOfferService, Run1: []int{5}}
	_, err := entries.InterpretOfferService(raw, nil)
	if err != entries.ErrBadIndexing {
		t.Fatalf("err = %v, want ErrBadIndexing", err)
	}
}

func TestInterpretOfferService_ContradictingOptions(t *testing.T) {
	options := []entries.Option{
		{Endpoint: sdtypes.Endpoint{Address: "10.0.0.2", Port: 30500, TCP: false}},
		{Endpoint: sdtypes.Endpoint{Address: "10.0.0.3", Port: 30502, TCP: false}},
	}
	raw := entries.RawEntry{Kind: entries.TypeOfferService, Run1: []int{0, 1}}

	_, err := entries.InterpretOfferService(raw, options)
	if err != entries.ErrContradictingOptions {
		t.Fatalf("err = %v, want ErrContradictingOptions", err)
	}
}

func TestInterpretStopOfferService_RejectsOptions(t *testing.T) {
	raw := entries.RawEntry{Kind: entries.TypeStopOfferService, Run1: []int{0}}
	_, err := entries.InterpretStopOfferService(raw, []entries.Option{{Endpoint: sdtypes.Endpoint{Address: "x"}}})
	if err != entries.ErrNotAllowedOption {
		t.Fatalf("err = %v, want ErrNotAllowedOption", err)
	}
}

func TestInterpretSubscribeEventgroupNack_RejectsOptions(t *testing.T) {
	raw := entries.RawEntry{Kind: entries.TypeSubscribeEventgroupNack, Run1: []int{0}}
	_, err := entries.InterpretSubscribeEventgroupNack(raw, []entries.Option{{Endpoint: sdtypes.Endpoint{Address: "x"}}})
	if err != entries.ErrNotAllowedOption {
		t.Fatalf("err = %v, want ErrNotAllowedOption", err)
	}
}

func TestInterpretSubscribeEventgroup_RequiresEndpoint(t *testing.T) {
	raw := entries.RawEntry{Kind: entries.TypeSubscribeEventgroup}
	_, err := entries.InterpretSubscribeEventgroup(raw, nil)
	if err != entries.ErrNotAllowedOption {
		t.Fatalf("err = %v, want ErrNotAllowedOption (missing endpoint)", err)
	}
}

func TestInterpretWrongEntryType(t *testing.T) {
	raw := entries.RawEntry{Kind: entries.TypeFindService}
	if _, err := entries.InterpretOfferService(raw, nil); err != entries.ErrWrongEntryType {
		t.Fatalf("err = %v, want ErrWrongEntryType", err)
	}
}
