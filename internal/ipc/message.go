// Package ipc implements the IPC Connection (C2): length-prefixed framed
// transport to one application process, with a TX queue and backpressure
// monitor (spec.md §4.2, §6).
package ipc

// MessageType is the generic-header message type (spec.md §6).
type MessageType uint8

const (
	MessageTypeRoutingSomeIp MessageType = iota
	MessageTypeRoutingPdu
	MessageTypeRoutingNotification
	MessageTypeControlRequest
	MessageTypeControlResponse
	MessageTypeSdServiceInstanceUpdate
	MessageTypeSdEventSubscriptionState
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeRoutingSomeIp:
		return "RoutingSomeIp"
	case MessageTypeRoutingPdu:
		return "RoutingPdu"
	case MessageTypeRoutingNotification:
		return "RoutingNotification"
	case MessageTypeControlRequest:
		return "ControlRequest"
	case MessageTypeControlResponse:
		return "ControlResponse"
	case MessageTypeSdServiceInstanceUpdate:
		return "SdServiceInstanceUpdate"
	case MessageTypeSdEventSubscriptionState:
		return "SdEventSubscriptionState"
	default:
		return "Unknown"
	}
}

const protocolVersion uint8 = 1

// GenericHeader is the fixed-size prefix of every IPC message
// (spec.md §6): protocol version, message type, and the native-endian
// body length that follows the specific header.
type GenericHeader struct {
	ProtocolVersion uint8
	MessageType     MessageType
	BodyLength      uint32
}

// SpecificHeader is the message-type-dependent header that follows the
// GenericHeader; its shape is carried as a closed union of the four wire
// variants named in spec.md §6 (the abstract wire codec itself, like the
// SOME/IP payload codec, is out of scope — this struct is its decoded
// output).
type SpecificHeader struct {
	// routing-SOME/IP, routing-PDU
	InstanceID uint16

	// routing-notification (initial field)
	ClientID uint16

	// control request/response
	ReturnCode uint32

	// SD service-instance update / event-subscription-state
	Service    uint16
	Major      uint8
	Minor      uint32
	Event      uint16
	EventState uint32
}

// Message is one fully decoded IPC frame.
type Message struct {
	Generic  GenericHeader
	Specific SpecificHeader
	Payload  []byte
}

// minRecvBufferSize is the minimum receive-buffer allocation even for a
// zero-length body (spec.md §4.2: "minimum 64 bytes for partial
// allocation").
const minRecvBufferSize = 64
