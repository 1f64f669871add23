package rsi

import (
	"testing"
	"time"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdclient"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

type noopSender struct{}

func (noopSender) SendSdMessage(sdscheduler.Target, []sdscheduler.Entry) {}

type recordingNotifier struct {
	ups   []sdtypes.ServiceInstanceId
	downs []sdtypes.ServiceInstanceId
}

func (n *recordingNotifier) OnStartOfferServiceInstance(instance sdtypes.ServiceInstanceId, _ sdclient.ActiveOffer) {
	n.ups = append(n.ups, instance)
}
func (n *recordingNotifier) OnStopOfferServiceInstance(instance sdtypes.ServiceInstanceId) {
	n.downs = append(n.downs, instance)
}
func (n *recordingNotifier) OnSubscriptionStateChange(sdtypes.ServiceInstanceId, sdtypes.EventgroupId, bool) {
}

func testConfig(instance sdtypes.ServiceInstanceId) Config {
	return Config{
		Deployment:      "rse_1",
		Instance:        instance,
		Policy:          sdtypes.ExactOrAnyMinorVersion,
		InitialMin:      5 * time.Millisecond,
		InitialMax:      10 * time.Millisecond,
		RepetitionBase:  5 * time.Millisecond,
		RepetitionCount: 3,
		FindServiceTTL:  time.Second,
	}
}

func TestRSI_P1_ClientIdsUniquePerRSI(t *testing.T) {
	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	target := sdscheduler.Target{Addr: "224.244.224.245", Port: 30490, Multicast: true}
	instance := sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 5}
	r := New(testConfig(instance), sched, target, nil)
	t.Cleanup(r.Close)

	seen := make(map[sdtypes.ClientId]struct{})
	for i := 0; i < 100; i++ {
		id, code := r.RequestService(&recordingNotifier{})
		if code != control.ReturnCodeOk {
			t.Fatalf("RequestService[%d] = %v", i, code)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate client id %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestRSI_InitialSnapshotDeliveredSynchronously(t *testing.T) {
	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	target := sdscheduler.Target{Addr: "224.244.224.245", Port: 30490, Multicast: true}
	instance := sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 5}
	r := New(testConfig(instance), sched, target, nil)
	t.Cleanup(r.Close)

	first := &recordingNotifier{}
	if _, code := r.RequestService(first); code != control.ReturnCodeOk {
		t.Fatalf("RequestService = %v", code)
	}
	r.StartServiceDiscovery()

	peer := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	r.OnOfferServiceEntry(5, instance, peer, 1, time.Minute, true, nil)

	if len(first.ups) != 1 {
		t.Fatalf("expected first notifier to observe 1 offer, got %d", len(first.ups))
	}

	second := &recordingNotifier{}
	if _, code := r.RequestService(second); code != control.ReturnCodeOk {
		t.Fatalf("RequestService = %v", code)
	}
	if len(second.ups) != 1 {
		t.Fatalf("expected newly-registered notifier to get the initial snapshot synchronously, got %d", len(second.ups))
	}

	offered := r.GetOfferedServices()
	if len(offered) != 1 {
		t.Fatalf("GetOfferedServices: want 1 entry, got %d", len(offered))
	}
}

func TestRSI_ReleaseServiceUnknownClientIsNotOk(t *testing.T) {
	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	target := sdscheduler.Target{Addr: "224.244.224.245", Port: 30490, Multicast: true}
	instance := sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 5}
	r := New(testConfig(instance), sched, target, nil)
	t.Cleanup(r.Close)

	if code := r.ReleaseService(0xBEEF); code != control.ReturnCodeNotOk {
		t.Fatalf("ReleaseService(unknown) = %v, want NotOk", code)
	}
}
