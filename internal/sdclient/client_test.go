package sdclient

import (
	"sync"
	"testing"
	"time"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
)

type noopSender struct{}

func (noopSender) SendSdMessage(sdscheduler.Target, []sdscheduler.Entry) {}

type recordingListener struct {
	mu     sync.Mutex
	ups    int
	downs  int
	lastUp ActiveOffer
}

func (l *recordingListener) OnServiceUp(_ sdtypes.ServiceInstanceId, offer ActiveOffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ups++
	l.lastUp = offer
}

func (l *recordingListener) OnServiceDown(sdtypes.ServiceInstanceId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.downs++
}

func (l *recordingListener) snapshot() (ups, downs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ups, l.downs
}

type noopObserver struct{}

func (noopObserver) OnOfferRenewed(sdtypes.ServiceInstanceId, bool) {}

func newTestClient(t *testing.T, listener Listener) *Client {
	t.Helper()

	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	cfg := Config{
		Instance:        sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Minor: 0, Instance: 5},
		Policy:          sdtypes.ExactOrAnyMinorVersion,
		InitialMin:      5 * time.Millisecond,
		InitialMax:      10 * time.Millisecond,
		RepetitionBase:  5 * time.Millisecond,
		RepetitionCount: 3,
		FindServiceTTL:  time.Second,
	}

	c := New(cfg, sched, sdscheduler.Target{Addr: "224.244.224.245", Port: 30490, Multicast: true}, listener, noopObserver{}, nil)
	t.Cleanup(c.Close)

	return c
}

func TestClient_Scenario1_FindOfferRequestRelease(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(t, listener)

	c.Start()
	c.OnNetworkUp()
	c.RequestService()

	if got := c.State(); got != StateInitialWait {
		t.Fatalf("state = %v, want InitialWait", got)
	}

	peer := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	c.OnOfferServiceEntry(peer, 1, 30*time.Second, false, []sdtypes.Endpoint{
		{Address: "10.0.0.2", Port: 30500}, {Address: "10.0.0.2", Port: 30501, TCP: true},
	})

	if got := c.State(); got != StateMain {
		t.Fatalf("state = %v, want Main", got)
	}

	ups, downs := listener.snapshot()
	if ups != 1 || downs != 0 {
		t.Fatalf("ups=%d downs=%d, want 1/0", ups, downs)
	}

	offer, ok := c.CurrentOffer()
	if !ok || offer.Peer != peer {
		t.Fatalf("unexpected offer: %+v ok=%v", offer, ok)
	}

	c.ReleaseService()
	if got := c.State(); got != StateDown {
		t.Fatalf("state after release = %v, want Down", got)
	}
	if _, ok := c.CurrentOffer(); ok {
		t.Fatal("offer must be cleared after release")
	}
}

func TestClient_P4_RenewalDoesNotReNotifyButRearmsTTL(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(t, listener)

	c.Start()
	c.OnNetworkUp()
	c.RequestService()

	peer := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	c.OnOfferServiceEntry(peer, 1, 50*time.Millisecond, false, nil)
	c.OnOfferServiceEntry(peer, 1, 50*time.Millisecond, false, nil) // renewal, same entry id

	ups, _ := listener.snapshot()
	if ups != 1 {
		t.Fatalf("renewal must not re-notify listener, got %d ups", ups)
	}
}

func TestClient_Scenario2_TTLExpiryThenReFind(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(t, listener)

	c.Start()
	c.OnNetworkUp()
	c.RequestService()

	peer := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	c.OnOfferServiceEntry(peer, 1, 20*time.Millisecond, false, nil)

	// Sample right after the expiry is reported: the initial-wait timer
	// (5-10ms) then moves the client on to Repetition.
	deadline := time.Now().Add(time.Second)
	for {
		if _, downs := listener.snapshot(); downs > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if got := c.State(); got != StateInitialWait {
		t.Fatalf("state after ttl expiry = %v, want InitialWait", got)
	}

	_, downs := listener.snapshot()
	if downs != 1 {
		t.Fatalf("downs = %d, want 1", downs)
	}
}

func TestClient_Scenario3_RebootClearsOffer(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(t, listener)

	c.Start()
	c.OnNetworkUp()
	c.RequestService()

	peer := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	c.OnOfferServiceEntry(peer, 1, time.Minute, false, nil)

	c.OnReboot(peer)

	if _, ok := c.CurrentOffer(); ok {
		t.Fatal("offer must be cleared after reboot")
	}
	if got := c.State(); got != StateInitialWait {
		t.Fatalf("state after reboot = %v, want InitialWait", got)
	}
}

func TestClient_P2_AtMostOneActiveOffer(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(t, listener)

	c.Start()
	c.OnNetworkUp()
	c.RequestService()

	peerA := reboot.PeerKey{Addr: "10.0.0.2", Port: 30490}
	peerB := reboot.PeerKey{Addr: "10.0.0.3", Port: 30490}

	c.OnOfferServiceEntry(peerA, 1, time.Minute, false, nil)
	c.OnOfferServiceEntry(peerB, 2, time.Minute, false, nil) // non-matching, must not preempt

	offer, ok := c.CurrentOffer()
	if !ok || offer.Peer != peerA {
		t.Fatalf("offer was preempted: %+v", offer)
	}
}
