package application

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/someipd/someipd/internal/rsi"
	"github.com/someipd/someipd/internal/trace"
	"github.com/someipd/someipd/internal/validator"
)

// maxApplications bounds the number of simultaneously connected
// applications (spec.md §3 "Application Manager", default pool size).
const maxApplications = 256

// Manager is the Application Manager (C7): it accepts IPC connections,
// hands each to a new Application, and runs the deferred-cleanup
// dispatch loop that finalizes an Application's teardown once it
// disconnects, so the accept goroutine is never blocked doing cleanup
// work (spec.md §4.6, P9). Grounded on the teacher's
// bfd.Manager.RunDispatch channel-drain pattern.
type Manager struct {
	logger       *slog.Logger
	rsiTable     *rsi.Table
	localServers *LocalServerManager
	offerSched   OfferScheduling
	lookup       validator.Lookup
	permissions  validator.PermissionChecker
	tracer       trace.Tracer

	nextID   atomic.Uint64
	cleanup  chan *Application

	mu    sync.Mutex
	apps  map[uint64]*Application
}

// NewManager constructs an Application Manager bound to the process-wide
// RSI table and LocalServer registry.
func NewManager(rsiTable *rsi.Table, localServers *LocalServerManager, offerSched OfferScheduling, lookup validator.Lookup, permissions validator.PermissionChecker, tracer trace.Tracer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = trace.NopTracer{}
	}
	return &Manager{
		logger:       logger.With("component", "application.manager"),
		rsiTable:     rsiTable,
		localServers: localServers,
		offerSched:   offerSched,
		lookup:       lookup,
		permissions:  permissions,
		tracer:       tracer,
		cleanup:      make(chan *Application, 64),
		apps:         make(map[uint64]*Application),
	}
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
// Each accepted connection becomes a new Application, subject to
// maxApplications; connections beyond the limit are closed immediately.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if m.count() >= maxApplications {
			m.logger.Warn("application pool full, rejecting connection", "max", maxApplications)
			c.Close()
			continue
		}

		id := m.nextID.Add(1)
		app := New(id, c, m.rsiTable, m.localServers, m.offerSched, m.lookup, m.permissions, m.tracer, m.logger, m.scheduleCleanup)

		m.mu.Lock()
		m.apps[id] = app
		m.mu.Unlock()

		m.logger.Info("application connected", "app_id", id, "remote", c.RemoteAddr())
	}
}

func (m *Manager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

// scheduleCleanup is the Application's disconnect callback: it hands the
// Application off to the cleanup dispatch loop instead of tearing it
// down inline, so a slow RSI/LocalServer release never blocks the
// accept loop or the IPC receive goroutine that observed the
// disconnect. When the queue is full, finalize runs on a goroutine of
// its own.
func (m *Manager) scheduleCleanup(app *Application) {
	select {
	case m.cleanup <- app:
	default:
		m.logger.Warn("cleanup queue full, finalizing on a separate goroutine", "app_id", app.ID())
		go m.finalize(app)
	}
}

// RunCleanupDispatch drains the cleanup queue and finalizes each
// Application's teardown. Must be running for disconnected applications
// to ever be fully released; blocks until ctx is cancelled.
func (m *Manager) RunCleanupDispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case app := <-m.cleanup:
			m.finalize(app)
		}
	}
}

func (m *Manager) finalize(app *Application) {
	app.Close()

	m.mu.Lock()
	delete(m.apps, app.ID())
	m.mu.Unlock()

	m.logger.Info("application cleaned up", "app_id", app.ID())
}

// Applications returns a snapshot of currently connected applications,
// used by the admin surface's ListApplications.
func (m *Manager) Applications() []*Application {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Application, 0, len(m.apps))
	for _, a := range m.apps {
		out = append(out, a)
	}
	return out
}

// Close disconnects every currently connected application.
func (m *Manager) Close() {
	m.mu.Lock()
	apps := make([]*Application, 0, len(m.apps))
	for _, a := range m.apps {
		apps = append(apps, a)
	}
	m.apps = make(map[uint64]*Application)
	m.mu.Unlock()

	for _, a := range apps {
		a.Close()
	}
}
