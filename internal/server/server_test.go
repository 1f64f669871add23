package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/someipd/someipd/internal/application"
	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/sdclient"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
	"github.com/someipd/someipd/internal/server"
	"github.com/someipd/someipd/internal/validator"
)

// testJSONCodec mirrors the server package's unexported jsonCodec: plain
// encoding/json over the Connect protocol, no proto.Message required.
type testJSONCodec struct{}

func (testJSONCodec) Name() string                      { return "json" }
func (testJSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (testJSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type noopSender struct{}

func (noopSender) SendSdMessage(sdscheduler.Target, []sdscheduler.Entry) {}

type allowLookup struct{}

func (allowLookup) KnownService(sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId) bool {
	return true
}
func (allowLookup) ResolveMethod(sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId, sdtypes.MethodId) (validator.Method, bool) {
	return validator.Method{}, true
}

func testInstance() sdtypes.ServiceInstanceId {
	return sdtypes.ServiceInstanceId{Service: 0x1234, Major: 1, Instance: 7}
}

func setupTestServer(t *testing.T) (*rsi.Table, *application.Manager, *http.Client, string) {
	t.Helper()

	table := rsi.NewTable()
	t.Cleanup(table.Close)

	sched := sdscheduler.New(noopSender{}, nil)
	t.Cleanup(sched.Close)

	cfg := rsi.Config{
		Deployment:     "climate-control",
		Instance:       testInstance(),
		InitialMin:     time.Millisecond,
		InitialMax:     2 * time.Millisecond,
		RepetitionBase: time.Millisecond,
		FindServiceTTL: time.Second,
	}
	r := rsi.New(cfg, sched, sdscheduler.Target{Addr: "239.0.0.1", Port: 30491, Multicast: true}, nil)
	if err := table.Add(rsi.KeyOf(testInstance()), r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mgr := application.NewManager(table, application.NewLocalServerManager(), application.OfferScheduling{}, allowLookup{}, nil, nil, nil)
	t.Cleanup(mgr.Close)

	path, handler := server.New(table, mgr, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return table, mgr, srv.Client(), srv.URL
}

func TestListRequiredServiceInstances(t *testing.T) {
	t.Parallel()

	_, _, httpClient, baseURL := setupTestServer(t)

	client := connect.NewClient[server.ListRequiredServiceInstancesRequest, server.ListRequiredServiceInstancesResponse](
		httpClient, baseURL+"/someipd.admin.v1.AdminService/ListRequiredServiceInstances",
		connect.WithClientOptions(connect.WithCodec(testJSONCodec{})),
	)

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&server.ListRequiredServiceInstancesRequest{}))
	if err != nil {
		t.Fatalf("ListRequiredServiceInstances: %v", err)
	}
	if len(resp.Msg.RequiredServiceInstances) != 1 {
		t.Fatalf("got %d RSIs, want 1", len(resp.Msg.RequiredServiceInstances))
	}
	got := resp.Msg.RequiredServiceInstances[0]
	if got.Deployment != "climate-control" {
		t.Errorf("Deployment = %q, want climate-control", got.Deployment)
	}
	if got.Service != uint16(testInstance().Service) {
		t.Errorf("Service = %x, want %x", got.Service, uint16(testInstance().Service))
	}
}

func TestListApplications(t *testing.T) {
	t.Parallel()

	_, mgr, httpClient, baseURL := setupTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.RunCleanupDispatch(ctx)
	go mgr.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for len(mgr.Applications()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for application to register")
		}
		time.Sleep(time.Millisecond)
	}

	client := connect.NewClient[server.ListApplicationsRequest, server.ListApplicationsResponse](
		httpClient, baseURL+"/someipd.admin.v1.AdminService/ListApplications",
		connect.WithClientOptions(connect.WithCodec(testJSONCodec{})),
	)

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&server.ListApplicationsRequest{}))
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(resp.Msg.Applications) != 1 {
		t.Fatalf("got %d applications, want 1", len(resp.Msg.Applications))
	}
}

func TestWatchServiceEvents(t *testing.T) {
	t.Parallel()

	table, _, httpClient, baseURL := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect.NewClient[server.WatchServiceEventsRequest, server.WatchServiceEventsResponse](
		httpClient, baseURL+"/someipd.admin.v1.AdminService/WatchServiceEvents",
		connect.WithClientOptions(connect.WithCodec(testJSONCodec{})),
	)

	stream, err := client.CallServerStream(ctx, connect.NewRequest(&server.WatchServiceEventsRequest{}))
	if err != nil {
		t.Fatalf("WatchServiceEvents: %v", err)
	}
	defer stream.Close()

	r, ok := table.Lookup(rsi.KeyOf(testInstance()))
	if !ok {
		t.Fatal("expected test RSI to be registered")
	}
	r.OnServiceUp(testInstance(), sdclient.ActiveOffer{})

	if !stream.Receive() {
		t.Fatalf("expected an event, got error: %v", stream.Err())
	}
	ev := stream.Msg().Event
	if !ev.Started {
		t.Error("expected Started=true")
	}
	if ev.Deployment != "climate-control" {
		t.Errorf("Deployment = %q, want climate-control", ev.Deployment)
	}
}
