package control

import (
	"log/slog"

	"github.com/someipd/someipd/internal/sdtypes"
)

// Command is one decoded control-message request (spec.md §4.5).
type Command struct {
	Type            CommandType
	ServiceInstance sdtypes.ServiceInstanceId
	ClientID        sdtypes.ClientId
	Eventgroup      sdtypes.EventgroupId
}

// Response is the result of executing a Command. Empty for
// fire-and-forget commands (P7).
type Response struct {
	Code     ReturnCode
	ClientID sdtypes.ClientId // only meaningful for RequestService
}

// Handlers is implemented by the Application (C6) binding into its RSI
// table and local-server map. Kept as an interface so the Controller
// itself stays a pure dispatcher, per spec.md §4.5: "delegates to C6's
// handler objects; the returned domain result is mapped into a
// control-message return code".
type Handlers interface {
	RequestService(instance sdtypes.ServiceInstanceId) (sdtypes.ClientId, ReturnCode)
	ReleaseService(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId) ReturnCode
	RequestLocalServer(instance sdtypes.ServiceInstanceId) ReturnCode
	ReleaseLocalServer(instance sdtypes.ServiceInstanceId)
	OfferService(instance sdtypes.ServiceInstanceId)
	StopOfferService(instance sdtypes.ServiceInstanceId)
	SubscribeEvent(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId, eg sdtypes.EventgroupId) ReturnCode
	UnsubscribeEvent(instance sdtypes.ServiceInstanceId, clientID sdtypes.ClientId, eg sdtypes.EventgroupId)
	StartServiceDiscovery(instance sdtypes.ServiceInstanceId) ReturnCode
	StopServiceDiscovery(instance sdtypes.ServiceInstanceId)
}

// Controller implements the Command Controller (C5).
type Controller struct {
	handlers Handlers
	logger   *slog.Logger
}

// NewController binds a Controller to one Application's Handlers.
func NewController(handlers Handlers, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{handlers: handlers, logger: logger.With("component", "control")}
}

// Execute runs one command and returns its response. hasResponse is
// false for fire-and-forget commands (P7); callers must not emit an IPC
// response in that case.
func (c *Controller) Execute(cmd Command) (resp Response, hasResponse bool) {
	hasResponse = !cmd.Type.FireAndForget()

	switch cmd.Type {
	case CommandRequestService:
		id, code := c.handlers.RequestService(cmd.ServiceInstance)
		resp = Response{Code: code, ClientID: id}
	case CommandReleaseService:
		c.handlers.ReleaseService(cmd.ServiceInstance, cmd.ClientID)
	case CommandRequestLocalServer:
		resp = Response{Code: c.handlers.RequestLocalServer(cmd.ServiceInstance)}
	case CommandReleaseLocalServer:
		c.handlers.ReleaseLocalServer(cmd.ServiceInstance)
	case CommandOfferService:
		c.handlers.OfferService(cmd.ServiceInstance)
	case CommandStopOfferService:
		c.handlers.StopOfferService(cmd.ServiceInstance)
	case CommandSubscribeEvent:
		resp = Response{Code: c.handlers.SubscribeEvent(cmd.ServiceInstance, cmd.ClientID, cmd.Eventgroup)}
	case CommandUnsubscribeEvent:
		c.handlers.UnsubscribeEvent(cmd.ServiceInstance, cmd.ClientID, cmd.Eventgroup)
	case CommandStartServiceDiscovery:
		resp = Response{Code: c.handlers.StartServiceDiscovery(cmd.ServiceInstance)}
	case CommandStopServiceDiscovery:
		c.handlers.StopServiceDiscovery(cmd.ServiceInstance)
	default:
		resp = Response{Code: ReturnCodeUnknownMessageType}
	}

	if hasResponse {
		c.logger.Debug("command executed", "command", cmd.Type, "code", resp.Code)
	}

	return resp, hasResponse
}
