package sdnet_test

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdmessage"
	"github.com/someipd/someipd/internal/sdnet"
)

// loopbackConn is an in-memory PacketConn pair used to exercise the
// Receiver without a real socket or CAP_NET_RAW, mirroring the teacher's
// MockPacketConn approach in netio/mock_test.go.
type loopbackConn struct {
	local netip.AddrPort
	peer  *loopbackConn

	mu     sync.Mutex
	closed bool
	queue  chan []byte
}

func newLoopbackPair(aAddr, bAddr netip.AddrPort) (*loopbackConn, *loopbackConn) {
	a := &loopbackConn{local: aAddr, queue: make(chan []byte, 16)}
	b := &loopbackConn{local: bAddr, queue: make(chan []byte, 16)}
	a.peer, b.peer = b, a
	return a, b
}

func (c *loopbackConn) ReadPacket(buf []byte) (int, sdnet.PacketMeta, error) {
	data, ok := <-c.queue
	if !ok {
		return 0, sdnet.PacketMeta{}, sdnet.ErrSocketClosed
	}
	n := copy(buf, data)
	return n, sdnet.PacketMeta{SrcAddr: c.peer.local}, nil
}

func (c *loopbackConn) WritePacket(buf []byte, _ netip.AddrPort) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return sdnet.ErrSocketClosed
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	c.peer.queue <- data
	return nil
}

func (c *loopbackConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.queue)
	return nil
}

func (c *loopbackConn) LocalAddr() netip.AddrPort { return c.local }

type recordingSink struct {
	mu   sync.Mutex
	msgs []sdmessage.Message
}

func (s *recordingSink) OnSdMessageReceived(_ reboot.PeerKey, _ bool, msg sdmessage.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestReceiverDeliversDecodedMessage(t *testing.T) {
	t.Parallel()

	tx, rx := newLoopbackPair(
		netip.MustParseAddrPort("10.0.0.1:30490"),
		netip.MustParseAddrPort("10.0.0.2:30490"),
	)

	sink := &recordingSink{}
	receiver := sdnet.NewReceiver(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = receiver.Run(ctx, rx)
		close(done)
	}()

	payload, err := sdnet.EncodeMessage(sdmessage.Message{SessionID: 42})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if err := tx.WritePacket(payload, netip.AddrPort{}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for delivered message")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	_ = tx.Close()
	_ = rx.Close()
	<-done

	if got := sink.count(); got != 1 {
		t.Fatalf("got %d messages, want 1", got)
	}
}

func TestReceiverRunNoListeners(t *testing.T) {
	t.Parallel()

	receiver := sdnet.NewReceiver(&recordingSink{}, nil)
	if err := receiver.Run(context.Background()); err == nil {
		t.Fatal("expected error with no listeners")
	}
}
