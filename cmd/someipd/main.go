// someipd daemon -- SOME/IP service discovery and routing (spec.md).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/someipd/someipd/internal/application"
	"github.com/someipd/someipd/internal/config"
	someipdmetrics "github.com/someipd/someipd/internal/metrics"
	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/sdmessage"
	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdnet"
	"github.com/someipd/someipd/internal/sdscheduler"
	"github.com/someipd/someipd/internal/sdtypes"
	"github.com/someipd/someipd/internal/server"
	sdtrace "github.com/someipd/someipd/internal/trace"
	"github.com/someipd/someipd/internal/validator"
	appversion "github.com/someipd/someipd/internal/version"
)

// shutdownTimeout is the maximum time to wait for servers and sockets to
// drain during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// flightRecorderMinAge is the minimum window age for the flight recorder.
const flightRecorderMinAge = 500 * time.Millisecond

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("someipd starting",
		slog.String("version", appversion.Version),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("ipc_socket", cfg.IPC.SocketPath),
	)

	fr := startFlightRecorder(logger)

	reg := prometheus.NewRegistry()
	collector := someipdmetrics.NewCollector(reg)

	rsiTable := rsi.NewTable()
	defer rsiTable.Close()

	if err := runDaemon(cfg, rsiTable, collector, reg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("someipd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("someipd stopped")
	return 0
}

// runDaemon wires the SD transport, RSI table, Application Manager, and
// admin/metrics servers together and runs them under a signal-aware
// errgroup, the someipd translation of the teacher's runServers.
func runDaemon(
	cfg *config.Config,
	rsiTable *rsi.Table,
	collector *someipdmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	conns, err := createSockets(gCtx, cfg.ServiceDiscovery, logger)
	if err != nil {
		return fmt.Errorf("create sd sockets: %w", err)
	}
	defer closeSockets(conns, logger)

	groupAddr, err := netip.ParseAddr(cfg.ServiceDiscovery.MulticastAddr)
	if err != nil {
		return fmt.Errorf("parse multicast_addr %s: %w", cfg.ServiceDiscovery.MulticastAddr, err)
	}
	sender := sdnet.NewSender(conns.multicast, conns.unicast, netip.AddrPortFrom(groupAddr, cfg.ServiceDiscovery.MulticastPort), logger)
	defer closeSender(sender, logger)

	scheduler := sdscheduler.New(sender, logger)
	defer scheduler.Close()

	target := sdscheduler.Target{
		Addr:      cfg.ServiceDiscovery.MulticastAddr,
		Port:      cfg.ServiceDiscovery.MulticastPort,
		Multicast: true,
	}

	localAddr := conns.unicast.LocalAddr()
	endpoint := sdtypes.Endpoint{Address: localAddr.Addr().String(), Port: localAddr.Port()}

	if err := populateRSITable(rsiTable, cfg.RequiredServiceInstances, scheduler, target, endpoint, collector, logger); err != nil {
		return fmt.Errorf("populate rsi table: %w", err)
	}

	processor := sdmessage.New(reboot.New(), &rsiSink{table: rsiTable}, &droppedStats{collector: collector}, logger)
	processor.SetNackScheduler(scheduler, target)

	receiver := sdnet.NewReceiver(processor, logger)
	g.Go(func() error {
		return receiver.Run(gCtx, conns.all()...)
	})

	offerSched := application.OfferScheduling{
		Scheduler:       scheduler,
		Target:          target,
		Endpoint:        endpoint,
		CyclicDelay:     cfg.ServiceDiscovery.CyclicOfferDelay,
		RepetitionBase:  cfg.ServiceDiscovery.OfferRepetitionBase,
		RepetitionCount: cfg.ServiceDiscovery.OfferRepetitionCount,
		TTL:             cfg.ServiceDiscovery.OfferTTL,
	}

	localServers := application.NewLocalServerManager()
	appMgr := application.NewManager(rsiTable, localServers, offerSched, &rsiTableLookup{table: rsiTable}, validator.AllowAll{}, sdtrace.SlogTracer{Logger: logger}, logger)

	ipcLn, err := createIPCListener(cfg.IPC.SocketPath)
	if err != nil {
		return fmt.Errorf("create ipc listener: %w", err)
	}
	defer closeIPCListener(ipcLn, logger)

	g.Go(func() error {
		logger.Info("ipc listener started", slog.String("socket", cfg.IPC.SocketPath))
		return appMgr.Serve(gCtx, ipcLn)
	})
	g.Go(func() error {
		appMgr.RunCleanupDispatch(gCtx)
		return nil
	})

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	adminSrv := newAdminServer(cfg.Admin, rsiTable, appMgr, logger)

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, rsiTable, logger, fr, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// SD Transport
// -------------------------------------------------------------------------

// sdConns bundles the daemon's two SD sockets: the joined multicast group
// and a unicast socket for directed FindService replies and subscriptions.
type sdConns struct {
	multicast *sdnet.UDPConn
	unicast   *sdnet.UDPConn
}

func (c sdConns) all() []sdnet.PacketConn {
	return []sdnet.PacketConn{c.multicast, c.unicast}
}

func createSockets(ctx context.Context, cfg config.ServiceDiscoveryConfig, logger *slog.Logger) (sdConns, error) {
	groupAddr, err := netip.ParseAddr(cfg.MulticastAddr)
	if err != nil {
		return sdConns{}, fmt.Errorf("parse multicast_addr %s: %w", cfg.MulticastAddr, err)
	}

	multicast, err := sdnet.ListenMulticast(ctx, groupAddr, cfg.MulticastPort, cfg.Interface)
	if err != nil {
		return sdConns{}, fmt.Errorf("listen multicast: %w", err)
	}

	unicast, err := sdnet.ListenUnicast(ctx, netip.IPv4Unspecified(), 0, cfg.Interface)
	if err != nil {
		_ = multicast.Close()
		return sdConns{}, fmt.Errorf("listen unicast: %w", err)
	}

	logger.Info("sd sockets ready",
		slog.String("multicast", fmt.Sprintf("%s:%d", cfg.MulticastAddr, cfg.MulticastPort)),
		slog.String("unicast", unicast.LocalAddr().String()),
		slog.String("interface", cfg.Interface),
	)

	return sdConns{multicast: multicast, unicast: unicast}, nil
}

func closeSender(sender *sdnet.Sender, logger *slog.Logger) {
	if err := sender.Close(); err != nil {
		logger.Warn("failed to close sd sender", slog.String("error", err.Error()))
	}
}

func closeSockets(conns sdConns, logger *slog.Logger) {
	for _, c := range conns.all() {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Warn("failed to close sd socket", slog.String("error", err.Error()))
		}
	}
}

// -------------------------------------------------------------------------
// RSI Table Population
// -------------------------------------------------------------------------

// populateRSITable creates one RSI per configured required-service-instance
// entry, registering each into the table (spec.md §3, §4.8).
func populateRSITable(table *rsi.Table, rcs []config.RequiredServiceInstanceConfig, scheduler *sdscheduler.Scheduler, target sdscheduler.Target, endpoint sdtypes.Endpoint, collector *someipdmetrics.Collector, logger *slog.Logger) error {
	for _, rc := range rcs {
		cfg := rsi.Config{
			Deployment:      rc.Deployment,
			Instance:        rc.ServiceInstanceId(),
			Policy:          rc.Policy(),
			InitialMin:      rc.InitialMin,
			InitialMax:      rc.InitialMax,
			RepetitionBase:  rc.RepetitionBase,
			RepetitionCount: rc.RepetitionCount,
			FindServiceTTL:  rc.FindServiceTTL,
			Endpoint:        endpoint,
		}

		r := rsi.New(cfg, scheduler, target, logger)
		key := rsi.KeyOf(cfg.Instance)
		if err := table.Add(key, r); err != nil {
			return fmt.Errorf("register rsi %s: %w", rc.Deployment, err)
		}

		logger.Info("rsi registered",
			slog.String("deployment", rc.Deployment),
			slog.String("service_instance", cfg.Instance.String()),
		)
	}

	if collector != nil {
		collector.SetRequiredServiceInstances(len(rcs))
	}
	return nil
}

// -------------------------------------------------------------------------
// SD Message Processor Wiring
// -------------------------------------------------------------------------

// rsiSink implements sdmessage.Sink by resolving the owning RSI from the
// table and forwarding the interpreted entry to it, bridging the
// processor's (service, major, instance)-keyed callbacks to
// rsi.RSI's instance-keyed ones.
type rsiSink struct {
	table *rsi.Table
}

func (s *rsiSink) OnOfferServiceEntry(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32, offer entries.OfferServiceEntry, isMulticast bool) {
	r, ok := s.table.LookupForOffer(service, major, instance)
	if !ok {
		return
	}
	if !sdtypes.MatchesOffer(r.Config().Instance, r.Config().Policy, offer.Minor, major, service, instance) {
		return
	}

	var endpoints []sdtypes.Endpoint
	if offer.UDP != nil {
		endpoints = append(endpoints, *offer.UDP)
	}
	if offer.TCP != nil {
		endpoints = append(endpoints, *offer.TCP)
	}

	serviceInstance := sdtypes.ServiceInstanceId{Service: service, Major: major, Minor: offer.Minor, Instance: instance}
	r.OnOfferServiceEntry(instance, serviceInstance, peer, entryID, offer.TTL.TTL(), isMulticast, endpoints)
}

func (s *rsiSink) OnStopOfferServiceEntry(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, peer reboot.PeerKey, entryID uint32) {
	r, ok := s.table.LookupForOffer(service, major, instance)
	if !ok {
		return
	}
	r.OnStopOfferServiceEntry(instance, peer, entryID)
}

// OnSubscribeEventgroupAck resolves the RSI that sent the matching
// SubscribeEventgroup (by service/major/instance, the same identity an
// RSI is registered under) and forwards the acknowledgement so it can
// notify the requesting app(s) (spec.md §4.9 "subscription state to
// app").
func (s *rsiSink) OnSubscribeEventgroupAck(ack entries.SubscribeEventgroupAckEntry, _ reboot.PeerKey, _ uint32) {
	r, ok := s.table.LookupForOffer(ack.Service, ack.Major, ack.Instance)
	if !ok {
		return
	}
	r.OnSubscribeEventgroupAck(ack)
}

// OnSubscribeEventgroupNack is the Nack sibling of OnSubscribeEventgroupAck.
func (s *rsiSink) OnSubscribeEventgroupNack(nack entries.SubscribeEventgroupNackEntry, _ reboot.PeerKey, _ uint32) {
	r, ok := s.table.LookupForOffer(nack.Service, nack.Major, nack.Instance)
	if !ok {
		return
	}
	r.OnSubscribeEventgroupNack(nack)
}

// OnSubscribeEventgroupEntry handles an incoming SubscribeEventgroup
// targeting a locally-offered instance. This daemon has no provided-side
// subscriber registry yet (Non-goal: method-level provided-side ACL), so
// the entry is routed to the owning RSI, if any, purely for observability
// rather than discarded silently.
func (s *rsiSink) OnSubscribeEventgroupEntry(sub entries.SubscribeEventgroupEntry, _ reboot.PeerKey, _ uint32) {
	r, ok := s.table.LookupForOffer(sub.Service, sub.Major, sub.Instance)
	if !ok {
		return
	}
	r.OnSubscribeEventgroupEntry(sub)
}

// OnStopSubscribeEventgroupEntry is the StopSubscribe sibling of
// OnSubscribeEventgroupEntry.
func (s *rsiSink) OnStopSubscribeEventgroupEntry(stop entries.StopSubscribeEventgroupEntry, _ reboot.PeerKey, _ uint32) {
	r, ok := s.table.LookupForOffer(stop.Service, stop.Major, stop.Instance)
	if !ok {
		return
	}
	r.OnStopSubscribeEventgroupEntry(stop)
}

// droppedStats implements sdmessage.Stats over the metrics collector.
type droppedStats struct {
	collector *someipdmetrics.Collector
}

func (d *droppedStats) IncDropped(entryType entries.Type, reason error) {
	if d.collector != nil {
		d.collector.IncDropped(entryType, reason)
	}
}

// -------------------------------------------------------------------------
// Validator Lookup
// -------------------------------------------------------------------------

// rsiTableLookup implements validator.Lookup against the live RSI table.
// A method catalog is not part of the daemon's configuration surface
// (spec.md Non-goals); any method id on a known service instance is
// treated as resolved at that instance's configured major version,
// deferring fine-grained method-level validation to a future config
// extension.
type rsiTableLookup struct {
	table *rsi.Table
}

func (l *rsiTableLookup) KnownService(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId) bool {
	_, ok := l.table.LookupForOffer(service, major, instance)
	return ok
}

func (l *rsiTableLookup) ResolveMethod(_ sdtypes.ServiceId, major sdtypes.MajorVersion, _ sdtypes.InstanceId, _ sdtypes.MethodId) (validator.Method, bool) {
	return validator.Method{InterfaceVersion: uint8(major)}, true
}

// -------------------------------------------------------------------------
// IPC Listener
// -------------------------------------------------------------------------

func createIPCListener(socketPath string) (net.Listener, error) {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", socketPath, err)
	}
	return ln, nil
}

func closeIPCListener(ln net.Listener, logger *slog.Logger) {
	if err := ln.Close(); err != nil {
		logger.Warn("failed to close ipc listener", slog.String("error", err.Error()))
	}
}

// -------------------------------------------------------------------------
// HTTP Servers — admin (ConnectRPC) + Prometheus metrics
// -------------------------------------------------------------------------

func startHTTPServers(ctx context.Context, g *errgroup.Group, cfg *config.Config, adminSrv, metricsSrv *http.Server, logger *slog.Logger) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

func startDaemonGoroutines(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newAdminServer creates the HTTP server for the admin ConnectRPC
// surface, wrapped with h2c so someipdctl can talk HTTP/2 in plaintext.
func newAdminServer(cfg config.AdminConfig, rsiTable *rsi.Table, appMgr *application.Manager, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	path, handler := server.New(rsiTable, appMgr, logger,
		server.LoggingInterceptorOption(logger),
		server.RecoveryInterceptorOption(logger),
	)
	mux.Handle(path, handler)

	checker := grpchealth.NewStaticChecker(
		grpchealth.HealthV1ServiceName,
		server.ServiceName,
	)
	mux.Handle(grpchealth.NewHandler(checker))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// -------------------------------------------------------------------------
// Systemd Integration
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level only
// -------------------------------------------------------------------------

// handleSIGHUP reloads the dynamic log level on SIGHUP. RSI set changes
// require a full restart (the RSI table's wildcard/specific SD client
// wiring is not safely replaceable while owned connections are live).
func handleSIGHUP(ctx context.Context, sigHUP <-chan os.Signal, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading log level")
			reloadLogLevel(configPath, logLevel, logger)
		}
	}
}

func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(ctx context.Context, rsiTable *rsi.Table, logger *slog.Logger, fr *trace.FlightRecorder, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	rsiTable.Close()

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Flight Recorder
// -------------------------------------------------------------------------

func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)

	return fr
}

// -------------------------------------------------------------------------
// Config + Logger
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
