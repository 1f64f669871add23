// Package control defines the IPC control-message return codes and
// message types (spec.md §6, §4.5), confirmed against original_source's
// command_controller.h ControlMessageReturnCode/MessageType enums, and
// implements the Command Controller (C5).
package control

// ReturnCode is the u32 control-message return code (spec.md §6).
type ReturnCode uint32

const (
	ReturnCodeOk ReturnCode = iota
	ReturnCodeNotOk
	ReturnCodeMalformedMessage
	ReturnCodeUnknownMessageType
	ReturnCodeUnsupportedVersion
	ReturnCodeInvalidParam
	ReturnCodeTimeOut
	ReturnCodeDisconnected
	ReturnCodeNotConnected
	ReturnCodeLocalServerNotAvailable
	ReturnCodeOfferServiceAccessDenied
	ReturnCodeRequestServiceAccessDenied
	ReturnCodeRequestServiceClientIdsOverflow
	ReturnCodeRequestServiceRemoteServerNotFound
	ReturnCodeRequestServiceRequiredServiceInstanceNotFound
)

func (r ReturnCode) String() string {
	switch r {
	case ReturnCodeOk:
		return "Ok"
	case ReturnCodeNotOk:
		return "NotOk"
	case ReturnCodeMalformedMessage:
		return "MalformedMessage"
	case ReturnCodeUnknownMessageType:
		return "UnknownMessageType"
	case ReturnCodeUnsupportedVersion:
		return "UnsupportedVersion"
	case ReturnCodeInvalidParam:
		return "InvalidParam"
	case ReturnCodeTimeOut:
		return "TimeOut"
	case ReturnCodeDisconnected:
		return "Disconnected"
	case ReturnCodeNotConnected:
		return "NotConnected"
	case ReturnCodeLocalServerNotAvailable:
		return "LocalServerNotAvailable"
	case ReturnCodeOfferServiceAccessDenied:
		return "OfferServiceAccessDenied"
	case ReturnCodeRequestServiceAccessDenied:
		return "RequestServiceAccessDenied"
	case ReturnCodeRequestServiceClientIdsOverflow:
		return "RequestServiceClientIdsOverflow"
	case ReturnCodeRequestServiceRemoteServerNotFound:
		return "RequestServiceRemoteServerNotFound"
	case ReturnCodeRequestServiceRequiredServiceInstanceNotFound:
		return "RequestServiceRequiredServiceInstanceNotFound"
	default:
		return "Unknown"
	}
}

// CommandType is one control command (spec.md §4.5).
type CommandType uint8

const (
	CommandRequestService CommandType = iota
	CommandReleaseService
	CommandRequestLocalServer
	CommandReleaseLocalServer
	CommandOfferService
	CommandStopOfferService
	CommandSubscribeEvent
	CommandUnsubscribeEvent
	CommandStartServiceDiscovery
	CommandStopServiceDiscovery
)

// FireAndForget reports whether a command never produces a response IPC
// message (spec.md §4.5, P7).
func (c CommandType) FireAndForget() bool {
	switch c {
	case CommandReleaseService, CommandReleaseLocalServer, CommandOfferService, CommandStopOfferService,
		CommandSubscribeEvent, CommandUnsubscribeEvent, CommandStartServiceDiscovery, CommandStopServiceDiscovery:
		return true
	default:
		return false
	}
}

func (c CommandType) String() string {
	switch c {
	case CommandRequestService:
		return "RequestService"
	case CommandReleaseService:
		return "ReleaseService"
	case CommandRequestLocalServer:
		return "RequestLocalServer"
	case CommandReleaseLocalServer:
		return "ReleaseLocalServer"
	case CommandOfferService:
		return "OfferService"
	case CommandStopOfferService:
		return "StopOfferService"
	case CommandSubscribeEvent:
		return "SubscribeEvent"
	case CommandUnsubscribeEvent:
		return "UnsubscribeEvent"
	case CommandStartServiceDiscovery:
		return "StartServiceDiscovery"
	case CommandStopServiceDiscovery:
		return "StopServiceDiscovery"
	default:
		return "Unknown"
	}
}
