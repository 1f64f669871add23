package sdclient

import (
	"testing"
	"time"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

type recordingFactory struct {
	children map[sdtypes.InstanceId]*recordingListener
}

func newRecordingFactory() *recordingFactory {
	return &recordingFactory{children: make(map[sdtypes.InstanceId]*recordingListener)}
}

func (f *recordingFactory) NewChild(instance sdtypes.InstanceId) (Listener, RemoteServerObserver) {
	l := &recordingListener{}
	f.children[instance] = l
	return l, noopObserver{}
}

func TestAllClient_Scenario4_TwoInstancesDiscovered(t *testing.T) {
	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	cfg := Config{
		Instance:        sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: sdtypes.InstanceIdAll},
		Policy:          sdtypes.ExactOrAnyMinorVersion,
		InitialMin:      5 * time.Millisecond,
		InitialMax:      10 * time.Millisecond,
		RepetitionBase:  5 * time.Millisecond,
		RepetitionCount: 3,
		FindServiceTTL:  time.Second,
	}

	factory := newRecordingFactory()
	target := sdscheduler.Target{Addr: "224.244.224.245", Port: 30490, Multicast: true}
	all := NewAllClient(cfg, sched, target, factory, nil)
	t.Cleanup(all.Close)

	all.Start()
	all.OnNetworkUp()
	all.RequestService()

	peer7 := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	peer9 := reboot.PeerKey{Addr: "10.0.0.3", Port: 30490}

	all.OnOfferServiceEntry(7, sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 7}, peer7, 1, time.Minute, false, nil)
	all.OnOfferServiceEntry(9, sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 9}, peer9, 1, time.Minute, false, nil)

	children := all.Children()
	if len(children) != 2 {
		t.Fatalf("want 2 discovered instances, got %d: %v", len(children), children)
	}

	for _, instance := range []sdtypes.InstanceId{7, 9} {
		listener, ok := factory.children[instance]
		if !ok {
			t.Fatalf("no child listener recorded for instance %d", instance)
		}
		ups, _ := listener.snapshot()
		if ups != 1 {
			t.Fatalf("instance %d: ups = %d, want 1", instance, ups)
		}
	}
}
