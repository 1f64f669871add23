package router

import (
	"encoding/binary"
	"log/slog"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/ipc"
	"github.com/someipd/someipd/internal/sdtypes"
	"github.com/someipd/someipd/internal/trace"
)

// conn is the subset of *ipc.Connection the SendRouter needs; kept as an
// interface so it can be stubbed in tests without a real socket.
type conn interface {
	SendMessage(mt ipc.MessageType, specific ipc.SpecificHeader, payload []byte)
	SendSomeIpMessage(instanceID uint16, payload []byte)
	SendInitialFieldNotificationMessage(instanceID, clientID uint16, payload []byte)
}

// SendRouter is the Send Router (C4): it encodes the three families of
// outbound notifications and hands the resulting frame to the owning
// Application's IPC connection (spec.md §4.4). It is shared because the
// network-side packet router keeps references to it (spec.md §4.6).
type SendRouter struct {
	conn   conn
	tracer trace.Tracer
	logger *slog.Logger
}

// NewSendRouter builds a SendRouter bound to one Application's
// connection.
func NewSendRouter(c conn, tracer trace.Tracer, logger *slog.Logger) *SendRouter {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = trace.NopTracer{}
	}
	return &SendRouter{conn: c, tracer: tracer, logger: logger.With("component", "router.send")}
}

// --- SD state to app ---------------------------------------------------

// OnStartOfferServiceInstance notifies the app that instance became
// available (spec.md §4.4, scenario 1's kServiceDiscoveryServiceInstanceUp).
func (s *SendRouter) OnStartOfferServiceInstance(instance sdtypes.ServiceInstanceId) {
	s.tracer.TraceIpcSend(uint16(instance.Instance), uint8(ipc.MessageTypeSdServiceInstanceUpdate), 0)
	s.conn.SendMessage(ipc.MessageTypeSdServiceInstanceUpdate, sdUpdateHeader(instance, 1), nil)
}

// OnStopOfferServiceInstance notifies the app that instance is no longer
// available.
func (s *SendRouter) OnStopOfferServiceInstance(instance sdtypes.ServiceInstanceId) {
	s.tracer.TraceIpcSend(uint16(instance.Instance), uint8(ipc.MessageTypeSdServiceInstanceUpdate), 0)
	s.conn.SendMessage(ipc.MessageTypeSdServiceInstanceUpdate, sdUpdateHeader(instance, 0), nil)
}

// OnSomeIpSubscriptionStateChange notifies the app of a SOME/IP
// eventgroup subscription state transition.
func (s *SendRouter) OnSomeIpSubscriptionStateChange(instance sdtypes.ServiceInstanceId, event sdtypes.EventId, subscribed bool) {
	hdr := sdUpdateHeader(instance, 0)
	hdr.Event = uint16(event)
	hdr.EventState = boolToState(subscribed)
	s.conn.SendMessage(ipc.MessageTypeSdEventSubscriptionState, hdr, nil)
}

// OnPduSubscriptionStateChange is the PDU sibling of
// OnSomeIpSubscriptionStateChange.
func (s *SendRouter) OnPduSubscriptionStateChange(instance sdtypes.ServiceInstanceId, event sdtypes.EventId, subscribed bool) {
	s.OnSomeIpSubscriptionStateChange(instance, event, subscribed)
}

// --- Event/response to app ----------------------------------------------

// OnSomeIpEvent forwards a received SOME/IP event to the subscribing app.
func (s *SendRouter) OnSomeIpEvent(instanceID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingSomeIp), len(payload))
	s.conn.SendSomeIpMessage(instanceID, payload)
}

// OnPduEvent forwards a received PDU event to the subscribing app.
func (s *SendRouter) OnPduEvent(instanceID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingPdu), len(payload))
	s.conn.SendMessage(ipc.MessageTypeRoutingPdu, ipc.SpecificHeader{InstanceID: instanceID}, payload)
}

// OnSomeIpInitialFieldNotification forwards a field's initial value,
// tagged with the subscribing ClientId so the app can route it to the
// right proxy (spec.md §4.4).
func (s *SendRouter) OnSomeIpInitialFieldNotification(instanceID, clientID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingNotification), len(payload))
	s.conn.SendInitialFieldNotificationMessage(instanceID, clientID, payload)
}

// OnMethodResponse forwards a method response/error back to the calling
// app.
func (s *SendRouter) OnMethodResponse(instanceID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingSomeIp), len(payload))
	s.conn.SendSomeIpMessage(instanceID, payload)
}

// --- Request from server side -------------------------------------------

// HandleMethodRequest forwards a method request to the application
// hosting the LocalServer (expects a response).
func (s *SendRouter) HandleMethodRequest(instanceID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingSomeIp), len(payload))
	s.conn.SendSomeIpMessage(instanceID, payload)
}

// HandleMethodRequestNoReturn forwards a fire-and-forget method request.
func (s *SendRouter) HandleMethodRequestNoReturn(instanceID uint16, payload []byte) {
	s.tracer.TraceIpcSend(instanceID, uint8(ipc.MessageTypeRoutingSomeIp), len(payload))
	s.conn.SendSomeIpMessage(instanceID, payload)
}

// --- control-protocol helpers used by ReceiveRouter ---------------------

func (s *SendRouter) sendControlResponse(resp control.Response) {
	s.conn.SendMessage(ipc.MessageTypeControlResponse, ipc.SpecificHeader{ReturnCode: uint32(resp.Code), ClientID: uint16(resp.ClientID)}, nil)
}

func (s *SendRouter) sendSomeIpError(instanceID uint16, code control.ReturnCode) {
	var payload [4]byte
	binary.NativeEndian.PutUint32(payload[:], uint32(code))
	s.conn.SendSomeIpMessage(instanceID, payload[:])
}

func sdUpdateHeader(instance sdtypes.ServiceInstanceId, state uint32) ipc.SpecificHeader {
	return ipc.SpecificHeader{
		Service:    uint16(instance.Service),
		InstanceID: uint16(instance.Instance),
		Major:      uint8(instance.Major),
		Minor:      uint32(instance.Minor),
		EventState: state,
	}
}

func boolToState(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
