package someipdmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/someipd/someipd/internal/sdmessage/entries"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "someipd"
	subsystem = "sd"
)

// Label names for someipd metrics.
const (
	labelDeployment = "deployment"
	labelCommand    = "command"
	labelEntryType  = "entry_type"
	labelReason     = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus someipd Metrics
// -------------------------------------------------------------------------

// Collector holds all someipd Prometheus metrics.
//
// Metrics are designed for production automotive-middleware monitoring:
//   - Gauges track currently active RSIs, applications, and offers.
//   - Counters track SD entries sent/received, command throughput, and
//     protocol-violation drops.
//   - Reboot and backpressure counters flag conditions worth alerting on.
type Collector struct {
	// RequiredServiceInstances tracks the number of configured RSIs.
	RequiredServiceInstances prometheus.Gauge

	// Applications tracks the number of currently connected applications.
	Applications prometheus.Gauge

	// ActiveOffers tracks the number of currently accepted offers, labeled
	// by the RSI deployment that holds them.
	ActiveOffers *prometheus.GaugeVec

	// RebootsDetected counts peer reboots observed by the Reboot Detector
	// (spec.md §4.13).
	RebootsDetected prometheus.Counter

	// CommandsProcessed counts control-protocol commands executed by the
	// Command Controller (C5), labeled by command name.
	CommandsProcessed *prometheus.CounterVec

	// SdEntriesSent counts outgoing SD entries, labeled by entry type.
	SdEntriesSent *prometheus.CounterVec

	// SdEntriesReceived counts incoming SD entries successfully
	// interpreted, labeled by entry type.
	SdEntriesReceived *prometheus.CounterVec

	// SdEntriesDropped counts incoming SD entries dropped as malformed,
	// labeled by entry type and failure reason (spec.md §4.11).
	SdEntriesDropped *prometheus.CounterVec

	// BackpressureWarnings counts IPC TX queue backpressure warnings
	// (spec.md §4.2).
	BackpressureWarnings prometheus.Counter
}

// NewCollector creates a Collector with all someipd metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "someipd_sd_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.RequiredServiceInstances,
		c.Applications,
		c.ActiveOffers,
		c.RebootsDetected,
		c.CommandsProcessed,
		c.SdEntriesSent,
		c.SdEntriesReceived,
		c.SdEntriesDropped,
		c.BackpressureWarnings,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		RequiredServiceInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "required_service_instances",
			Help:      "Number of configured required service instances (RSIs).",
		}),

		Applications: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "applications",
			Help:      "Number of currently connected applications.",
		}),

		ActiveOffers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_offers",
			Help:      "Number of currently accepted service offers, per RSI deployment.",
		}, []string{labelDeployment}),

		RebootsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reboots_detected_total",
			Help:      "Total peer reboots detected via session-id/reboot-flag tracking.",
		}),

		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commands_processed_total",
			Help:      "Total control-protocol commands executed, per command type.",
		}, []string{labelCommand}),

		SdEntriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries_sent_total",
			Help:      "Total outgoing service discovery entries, per entry type.",
		}, []string{labelEntryType}),

		SdEntriesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries_received_total",
			Help:      "Total incoming service discovery entries successfully interpreted, per entry type.",
		}, []string{labelEntryType}),

		SdEntriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries_dropped_total",
			Help:      "Total incoming service discovery entries dropped as malformed, per entry type and reason.",
		}, []string{labelEntryType, labelReason}),

		BackpressureWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ipc_backpressure_warnings_total",
			Help:      "Total IPC connection TX queue backpressure warnings.",
		}),
	}
}

// -------------------------------------------------------------------------
// RSI / Application Lifecycle
// -------------------------------------------------------------------------

// SetRequiredServiceInstances sets the RSI gauge to n, called once at
// startup after the RSI table is populated.
func (c *Collector) SetRequiredServiceInstances(n int) {
	c.RequiredServiceInstances.Set(float64(n))
}

// SetApplications sets the connected-applications gauge to n.
func (c *Collector) SetApplications(n int) {
	c.Applications.Set(float64(n))
}

// IncActiveOffers increments the active-offers gauge for deployment.
func (c *Collector) IncActiveOffers(deployment string) {
	c.ActiveOffers.WithLabelValues(deployment).Inc()
}

// DecActiveOffers decrements the active-offers gauge for deployment.
func (c *Collector) DecActiveOffers(deployment string) {
	c.ActiveOffers.WithLabelValues(deployment).Dec()
}

// IncRebootsDetected increments the reboot-detection counter.
func (c *Collector) IncRebootsDetected() {
	c.RebootsDetected.Inc()
}

// -------------------------------------------------------------------------
// Control Protocol
// -------------------------------------------------------------------------

// IncCommandsProcessed increments the per-command counter.
func (c *Collector) IncCommandsProcessed(command string) {
	c.CommandsProcessed.WithLabelValues(command).Inc()
}

// -------------------------------------------------------------------------
// Service Discovery
// -------------------------------------------------------------------------

// IncSdEntriesSent increments the outgoing-entry counter for entryType.
func (c *Collector) IncSdEntriesSent(entryType string) {
	c.SdEntriesSent.WithLabelValues(entryType).Inc()
}

// IncSdEntriesReceived increments the incoming-entry counter for entryType.
func (c *Collector) IncSdEntriesReceived(entryType string) {
	c.SdEntriesReceived.WithLabelValues(entryType).Inc()
}

// IncDropped implements sdmessage.Stats: increments the dropped-entry
// counter, labeled by entry type and failure reason.
func (c *Collector) IncDropped(entryType entries.Type, reason error) {
	reasonLabel := "unknown"
	if reason != nil {
		reasonLabel = reason.Error()
	}
	c.SdEntriesDropped.WithLabelValues(entryType.String(), reasonLabel).Inc()
}

// -------------------------------------------------------------------------
// IPC Backpressure
// -------------------------------------------------------------------------

// IncBackpressureWarnings increments the IPC backpressure warning counter.
func (c *Collector) IncBackpressureWarnings() {
	c.BackpressureWarnings.Inc()
}
