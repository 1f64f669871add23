// Package server implements the admin/health ConnectRPC surface for the
// someipd daemon: ListRequiredServiceInstances, ListApplications, and the
// server-streaming WatchServiceEvents (spec.md §2 admin surface).
//
// The teacher's equivalent (bfdv1connect.BfdServiceHandler) is backed by
// protoc-generated request/response types that are not present in the
// retrieved pack, and this repo cannot run protoc. This package is
// instead a code-first ConnectRPC handler: plain Go structs marshaled as
// JSON over the Connect protocol via a custom Codec (see codec.go and
// DESIGN.md).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/someipd/someipd/internal/application"
	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/sdtypes"
)

// ServiceName is this admin service's fully-qualified name, used to build
// procedure paths and reported to grpchealth.
const ServiceName = "someipd.admin.v1.AdminService"

const (
	procedureListRequiredServiceInstances = "/" + ServiceName + "/ListRequiredServiceInstances"
	procedureListApplications             = "/" + ServiceName + "/ListApplications"
	procedureWatchServiceEvents           = "/" + ServiceName + "/WatchServiceEvents"
)

// Server implements the admin surface's RPCs. Each RPC reads straight
// from the live RSI table and Application Manager -- there is no
// separate cache to keep in sync.
type Server struct {
	rsiTable *rsi.Table
	apps     *application.Manager
	logger   *slog.Logger
}

// New creates a Server and returns the mux handler and its path prefix,
// matching the shape of the teacher's server.New (mux.Handle(path, handler)
// at the call site in cmd/someipd).
func New(rsiTable *rsi.Table, apps *application.Manager, logger *slog.Logger, opts ...connect.HandlerOption) (string, http.Handler) {
	srv := &Server{
		rsiTable: rsiTable,
		apps:     apps,
		logger:   logger.With(slog.String("component", "server")),
	}

	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(procedureListRequiredServiceInstances, connect.NewUnaryHandler(
		procedureListRequiredServiceInstances, srv.ListRequiredServiceInstances, opts...))
	mux.Handle(procedureListApplications, connect.NewUnaryHandler(
		procedureListApplications, srv.ListApplications, opts...))
	mux.Handle(procedureWatchServiceEvents, connect.NewServerStreamHandler(
		procedureWatchServiceEvents, srv.WatchServiceEvents, opts...))

	return "/" + ServiceName + "/", mux
}

// ListRequiredServiceInstances returns every configured RSI and its
// current SD client state.
func (s *Server) ListRequiredServiceInstances(
	ctx context.Context,
	_ *connect.Request[ListRequiredServiceInstancesRequest],
) (*connect.Response[ListRequiredServiceInstancesResponse], error) {
	s.logger.InfoContext(ctx, "ListRequiredServiceInstances called")

	all := s.rsiTable.All()
	out := make([]RequiredServiceInstance, 0, len(all))
	for _, r := range all {
		out = append(out, rsiToWire(r))
	}

	return connect.NewResponse(&ListRequiredServiceInstancesResponse{
		RequiredServiceInstances: out,
	}), nil
}

// ListApplications returns every currently connected application.
func (s *Server) ListApplications(
	ctx context.Context,
	_ *connect.Request[ListApplicationsRequest],
) (*connect.Response[ListApplicationsResponse], error) {
	s.logger.InfoContext(ctx, "ListApplications called")

	apps := s.apps.Applications()
	out := make([]Application, 0, len(apps))
	for _, a := range apps {
		out = append(out, Application{
			Id:                a.ID(),
			RequestedServices: a.RequestedServiceCount(),
			OfferedServices:   a.OfferedServiceCount(),
		})
	}

	return connect.NewResponse(&ListApplicationsResponse{Applications: out}), nil
}

// WatchServiceEvents streams every offer-start/offer-stop transition
// observed across all registered RSIs (server-side streaming), matching
// the shape of the teacher's WatchSessionEvents.
func (s *Server) WatchServiceEvents(
	ctx context.Context,
	_ *connect.Request[WatchServiceEventsRequest],
	stream *connect.ServerStream[WatchServiceEventsResponse],
) error {
	s.logger.InfoContext(ctx, "WatchServiceEvents called")

	ch := s.rsiTable.Events()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("watch service events: %w", ctx.Err())
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			resp := &WatchServiceEventsResponse{Event: serviceEventToWire(ev)}
			if err := stream.Send(resp); err != nil {
				return fmt.Errorf("send service event: %w", err)
			}
		}
	}
}

// -------------------------------------------------------------------------
// Internal helpers
// -------------------------------------------------------------------------

func rsiToWire(r *rsi.RSI) RequiredServiceInstance {
	cfg := r.Config()
	return RequiredServiceInstance{
		Deployment:         cfg.Deployment,
		Service:            uint16(cfg.Instance.Service),
		Major:              uint8(cfg.Instance.Major),
		Instance:           uint16(cfg.Instance.Instance),
		MinorVersionPolicy: policyToWire(cfg.Policy),
		State:              r.State().String(),
		ActiveOffers:       len(r.GetOfferedServices()),
		Requesters:         r.RequesterCount(),
	}
}

func policyToWire(p sdtypes.MinorVersionPolicy) string {
	if p == sdtypes.ExactOrAnyMinorVersion {
		return "exact_or_any"
	}
	return "minimum"
}

func serviceEventToWire(ev rsi.ServiceEvent) ServiceEvent {
	return ServiceEvent{
		Deployment: ev.Deployment,
		Service:    uint16(ev.Instance.Service),
		Major:      uint8(ev.Instance.Major),
		Instance:   uint16(ev.Instance.Instance),
		Started:    ev.Started,
		Timestamp:  ev.Timestamp,
	}
}
