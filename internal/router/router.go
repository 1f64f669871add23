// Package router implements the Receive Router (C3) and Send Router
// (C4): classification/dispatch of inbound IPC frames, and encoding of
// outbound SD-state/event/request notifications back to an application
// (spec.md §4.3, §4.4).
package router

import (
	"log/slog"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/ipc"
	"github.com/someipd/someipd/internal/trace"
	"github.com/someipd/someipd/internal/validator"
)

// LocalClient is looked up by ReceiveRouter to forward server-side
// traffic (responses, errors, events) addressed to a request this
// application previously issued.
type LocalClient interface {
	SendMethodResponse(payload []byte)
	SendEvent(payload []byte)
}

// LocalServer is looked up by ReceiveRouter to forward a routing-PDU
// frame, and by SendRouter to deliver inbound requests.
type LocalServer interface {
	SendMethodRequest(payload []byte)
	SendMethodRequestNoReturn(payload []byte)
	SendPdu(payload []byte)
}

// Lookups resolves the LocalClient/LocalServer owning a given instance,
// implemented by the Application (C6).
type Lookups interface {
	FindLocalServer(instanceID uint16) (LocalServer, bool)
	FindLocalClient(instanceID uint16) (LocalClient, bool)
}

// ReceiveRouter is the Receive Router (C3).
type ReceiveRouter struct {
	validate   *validator.Validator
	lookups    Lookups
	control    *control.Controller
	send       *SendRouter
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewReceiveRouter builds a ReceiveRouter bound to one Application's
// lookups, command controller, and send router.
func NewReceiveRouter(validate *validator.Validator, lookups Lookups, ctrl *control.Controller, send *SendRouter, tracer trace.Tracer, logger *slog.Logger) *ReceiveRouter {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = trace.NopTracer{}
	}
	return &ReceiveRouter{validate: validate, lookups: lookups, control: ctrl, send: send, tracer: tracer, logger: logger.With("component", "router.receive")}
}

// Dispatch classifies and routes one inbound IPC frame (spec.md §4.3).
func (r *ReceiveRouter) Dispatch(msg ipc.Message) {
	switch msg.Generic.MessageType {
	case ipc.MessageTypeRoutingSomeIp:
		r.dispatchSomeIp(msg)
	case ipc.MessageTypeRoutingPdu:
		r.dispatchPdu(msg)
	case ipc.MessageTypeControlRequest:
		r.dispatchControl(msg)
	default:
		r.logger.Warn("unexpected inbound ipc message type", "type", msg.Generic.MessageType)
	}
}

func (r *ReceiveRouter) dispatchSomeIp(msg ipc.Message) {
	instanceID := msg.Specific.InstanceID
	mt := someIpMessageTypeOf(msg)

	switch mt {
	case validator.MessageTypeNotification:
		server, ok := r.lookups.FindLocalServer(instanceID)
		if !ok {
			r.logger.Warn("notification for unknown local server", "instance_id", instanceID)
			return
		}
		server.SendPdu(msg.Payload)

	case validator.MessageTypeResponse, validator.MessageTypeError:
		client, ok := r.lookups.FindLocalClient(instanceID)
		if !ok {
			r.logger.Warn("response for unknown local client", "instance_id", instanceID)
			return
		}
		client.SendMethodResponse(msg.Payload)

	case validator.MessageTypeRequest, validator.MessageTypeRequestNoReturn:
		server, ok := r.lookups.FindLocalServer(instanceID)
		if !ok {
			r.logger.Warn("request for unknown local server, responding not-reachable", "instance_id", instanceID)
			if mt == validator.MessageTypeRequest {
				r.send.sendSomeIpError(instanceID, control.ReturnCodeNotConnected)
			}
			return
		}
		if mt == validator.MessageTypeRequest {
			server.SendMethodRequest(msg.Payload)
		} else {
			server.SendMethodRequestNoReturn(msg.Payload)
		}
	}
}

func (r *ReceiveRouter) dispatchPdu(msg ipc.Message) {
	server, ok := r.lookups.FindLocalServer(msg.Specific.InstanceID)
	if !ok {
		r.logger.Warn("pdu for unknown local server", "instance_id", msg.Specific.InstanceID)
		return
	}
	server.SendPdu(msg.Payload)
}

func (r *ReceiveRouter) dispatchControl(msg ipc.Message) {
	cmd, ok := decodeCommand(msg)
	if !ok {
		r.logger.Warn("malformed control request")
		return
	}

	resp, hasResponse := r.control.Execute(cmd)
	if !hasResponse {
		return
	}

	r.send.sendControlResponse(resp)
}

// someIpMessageTypeOf reads the SOME/IP message type from the low four
// bits of the payload's first byte, where the (out-of-scope) SOME/IP
// payload codec carries it pre-decoded, matching spec.md §6 "payload is
// the inner SOME/IP ... message". An empty payload counts as a Request.
func someIpMessageTypeOf(msg ipc.Message) validator.MessageType {
	if len(msg.Payload) == 0 {
		return validator.MessageTypeRequest
	}
	return validator.MessageType(msg.Payload[0] & 0x0F)
}

func decodeCommand(msg ipc.Message) (control.Command, bool) {
	if len(msg.Payload) < 1 {
		return control.Command{}, false
	}
	return control.Command{Type: control.CommandType(msg.Payload[0])}, true
}
