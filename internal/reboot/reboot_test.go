package reboot

import "testing"

func TestDetector_FirstObservationNeverReboots(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	if d.Observe(peer, false, 42, true) {
		t.Fatal("first observation must not be a reboot")
	}
}

func TestDetector_RebootFlagTransitionOneToZero(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	d.Observe(peer, false, 1, true)

	if !d.Observe(peer, false, 2, false) {
		t.Fatal("flag 1 -> 0 transition must be detected as a reboot")
	}
}

func TestDetector_SessionRegressionUnderFlagSet(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	d.Observe(peer, true, 42, true)

	if !d.Observe(peer, true, 1, true) {
		t.Fatal("session regression under reboot_flag=1 must be detected as a reboot")
	}
}

func TestDetector_MonotonicSessionNoReboot(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	d.Observe(peer, true, 1, true)

	if d.Observe(peer, true, 2, true) {
		t.Fatal("monotonically increasing session under flag=1 must not reboot")
	}
}

func TestDetector_UnicastAndMulticastChannelsIndependent(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	d.Observe(peer, false, 5, true)
	d.Observe(peer, true, 9, true)

	if d.Observe(peer, false, 6, true) {
		t.Fatal("unicast progression must not be affected by multicast state")
	}
}

func TestDetector_P5_PostRebootStateNotObservable(t *testing.T) {
	d := New()
	peer := PeerKey{Addr: "10.0.0.2", Port: 30490}

	d.Observe(peer, false, 42, true)
	d.Observe(peer, false, 1, true) // reboot, clears peer entirely

	// Next message on either channel is treated as the first observation
	// of a fresh peer, proving no pre-reboot counters survive.
	if d.Observe(peer, true, 1, true) {
		t.Fatal("post-reboot state must behave as a fresh peer on the other channel too")
	}
}
