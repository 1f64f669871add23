// Package adminclient is the someipdctl side of the admin ConnectRPC
// surface. The teacher's CLI (gobfdctl) talks to its daemon through a
// protoc-generated bfdv1connect.BfdServiceClient; this repo's admin
// surface is code-first (see DESIGN.md), so this package
// is the hand-written equivalent: one generic connect.Client per RPC,
// built directly against the plain Go request/response structs the
// server marshals with its custom JSON codec.
package adminclient

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/someipd/someipd/internal/server"
)

// Client is a thin RPC client for the admin/monitoring surface
// (ListRequiredServiceInstances, ListApplications, WatchServiceEvents).
type Client struct {
	rsis   *connect.Client[server.ListRequiredServiceInstancesRequest, server.ListRequiredServiceInstancesResponse]
	apps   *connect.Client[server.ListApplicationsRequest, server.ListApplicationsResponse]
	events *connect.Client[server.WatchServiceEventsRequest, server.WatchServiceEventsResponse]
}

// New builds a Client that talks to the admin surface at baseURL (e.g.
// "http://localhost:50051"), using httpClient for transport. A nil
// httpClient defaults to http.DefaultClient.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	opt := server.WithJSONCodec()
	return &Client{
		rsis: connect.NewClient[server.ListRequiredServiceInstancesRequest, server.ListRequiredServiceInstancesResponse](
			httpClient, baseURL+"/"+server.ServiceName+"/ListRequiredServiceInstances", opt),
		apps: connect.NewClient[server.ListApplicationsRequest, server.ListApplicationsResponse](
			httpClient, baseURL+"/"+server.ServiceName+"/ListApplications", opt),
		events: connect.NewClient[server.WatchServiceEventsRequest, server.WatchServiceEventsResponse](
			httpClient, baseURL+"/"+server.ServiceName+"/WatchServiceEvents", opt),
	}
}

// ListRequiredServiceInstances returns every configured RSI and its
// current SD client state.
func (c *Client) ListRequiredServiceInstances(ctx context.Context) ([]server.RequiredServiceInstance, error) {
	resp, err := c.rsis.CallUnary(ctx, connect.NewRequest(&server.ListRequiredServiceInstancesRequest{}))
	if err != nil {
		return nil, fmt.Errorf("list required service instances: %w", err)
	}
	return resp.Msg.RequiredServiceInstances, nil
}

// ListApplications returns every currently connected application.
func (c *Client) ListApplications(ctx context.Context) ([]server.Application, error) {
	resp, err := c.apps.CallUnary(ctx, connect.NewRequest(&server.ListApplicationsRequest{}))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return resp.Msg.Applications, nil
}

// WatchServiceEvents opens the server-streaming RPC and returns the raw
// stream; the caller drives Receive()/Msg()/Close() (mirrors
// connect.ServerStreamForClient's usual call shape).
func (c *Client) WatchServiceEvents(ctx context.Context) (*connect.ServerStreamForClient[server.WatchServiceEventsResponse], error) {
	stream, err := c.events.CallServerStream(ctx, connect.NewRequest(&server.WatchServiceEventsRequest{}))
	if err != nil {
		return nil, fmt.Errorf("watch service events: %w", err)
	}
	return stream, nil
}
