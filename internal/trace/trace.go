// Package trace defines the tracing hooks consumed by the routing and SD
// components (spec.md §4.4 "All operations emit a tracing call before
// the IPC write"). The trace sink itself is an external collaborator
// (spec.md §1); this package only fixes the hook shapes and provides a
// slog-backed default.
package trace

import "log/slog"

// Tracer receives a notification for every IPC write and every SD entry
// sent or received, independent of whatever actually handles delivery.
type Tracer interface {
	TraceIpcSend(instanceID uint16, messageType uint8, payloadLen int)
	TraceSdEntrySent(entryType uint8, serviceID, instanceID uint16)
	TraceSdEntryReceived(entryType uint8, serviceID, instanceID uint16)
}

// NopTracer discards every trace call.
type NopTracer struct{}

func (NopTracer) TraceIpcSend(uint16, uint8, int)          {}
func (NopTracer) TraceSdEntrySent(uint8, uint16, uint16)   {}
func (NopTracer) TraceSdEntryReceived(uint8, uint16, uint16) {}

// SlogTracer logs every trace call at Debug level, the default
// collaborator when no dedicated tracing sink is configured.
type SlogTracer struct {
	Logger *slog.Logger
}

func (t SlogTracer) TraceIpcSend(instanceID uint16, messageType uint8, payloadLen int) {
	t.Logger.Debug("ipc send", "instance_id", instanceID, "message_type", messageType, "payload_len", payloadLen)
}

func (t SlogTracer) TraceSdEntrySent(entryType uint8, serviceID, instanceID uint16) {
	t.Logger.Debug("sd entry sent", "entry_type", entryType, "service_id", serviceID, "instance_id", instanceID)
}

func (t SlogTracer) TraceSdEntryReceived(entryType uint8, serviceID, instanceID uint16) {
	t.Logger.Debug("sd entry received", "entry_type", entryType, "service_id", serviceID, "instance_id", instanceID)
}
