package application

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/someipd/someipd/internal/rsi"
)

func TestManager_AcceptedConnectionIsCleanedUpAfterDisconnect(t *testing.T) {
	table := rsi.NewTable()
	t.Cleanup(table.Close)
	servers := NewLocalServerManager()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	mgr := NewManager(table, servers, OfferScheduling{}, allowLookup{}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go mgr.RunCleanupDispatch(ctx)
	go mgr.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(mgr.Applications()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for application to register")
		}
		time.Sleep(time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for len(mgr.Applications()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for application cleanup")
		}
		time.Sleep(time.Millisecond)
	}
}
