// Package validator implements the Packet Validator (C1): a three-step
// ordered check of an incoming SOME/IP request against header
// well-formedness, configuration, and IAM policy (spec.md §4.1, P10).
package validator

import "github.com/someipd/someipd/internal/sdtypes"

// Error is the tagged validation failure set (spec.md §4.1). The receive
// router maps these one-to-one onto SOME/IP ReturnCode when an error
// response must be synthesised for a request.
type Error uint8

const (
	ErrNone Error = iota
	ErrWrongProtocolVersion
	ErrWrongMessageType
	ErrUnknownMethod
	ErrWrongInterfaceVersion
	ErrUnknownService
	ErrSecurityDenied
	ErrConnectionTransmissionFailed
	ErrConnectionNotAvailable
	ErrServiceNotOffered
)

func (e Error) String() string {
	switch e {
	case ErrNone:
		return "None"
	case ErrWrongProtocolVersion:
		return "WrongProtocolVersion"
	case ErrWrongMessageType:
		return "WrongMessageType"
	case ErrUnknownMethod:
		return "UnknownMethod"
	case ErrWrongInterfaceVersion:
		return "WrongInterfaceVersion"
	case ErrUnknownService:
		return "UnknownService"
	case ErrSecurityDenied:
		return "SecurityDenied"
	case ErrConnectionTransmissionFailed:
		return "ConnectionTransmissionFailed"
	case ErrConnectionNotAvailable:
		return "ConnectionNotAvailable"
	case ErrServiceNotOffered:
		return "ServiceNotOffered"
	default:
		return "Unknown"
	}
}

// Header is the decoded well-formedness-relevant subset of a SOME/IP
// message header.
type Header struct {
	ProtocolVersion uint8
	MessageType     MessageType
}

// MessageType is the SOME/IP wire message type.
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeRequestNoReturn
	MessageTypeNotification
	MessageTypeResponse
	MessageTypeError
)

const wireProtocolVersion uint8 = 1

// Credentials identifies the caller for the IAM check (spec.md §4.1).
type Credentials struct {
	UID uint32
	GID uint32
}

// Method describes one configured method or event, the unit the
// configuration lookup (step b) resolves to.
type Method struct {
	ID               sdtypes.MethodId
	InterfaceVersion uint8
}

// Lookup resolves configuration: is (service, major, instance) known at
// all, and if so does it expose a method/event with this id and
// interface version. Implemented by the daemon's configuration store.
type Lookup interface {
	KnownService(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId) bool
	ResolveMethod(service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, method sdtypes.MethodId) (Method, bool)
}

// PermissionChecker is the IAM stage (step c), kept as its own interface
// per original_source's security_validator.h separating permission
// checks from header/config validation — the daemon may run with IAM
// disabled, in which case a permissive implementation is installed.
type PermissionChecker interface {
	Allowed(creds Credentials, service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, method sdtypes.MethodId) bool
}

// AllowAll is a PermissionChecker that grants every request, used when
// IAM is disabled.
type AllowAll struct{}

func (AllowAll) Allowed(Credentials, sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId, sdtypes.MethodId) bool {
	return true
}

// Validator runs the three-step ordered check (spec.md §4.1, P10): the
// first failing check short-circuits and later checks are not performed.
type Validator struct {
	lookup      Lookup
	permissions PermissionChecker
}

// New builds a Validator. If permissions is nil, AllowAll is installed.
func New(lookup Lookup, permissions PermissionChecker) *Validator {
	if permissions == nil {
		permissions = AllowAll{}
	}
	return &Validator{lookup: lookup, permissions: permissions}
}

// Validate runs the header, configuration, and IAM checks in order,
// returning ErrNone on success or the first failing check's Error.
func (v *Validator) Validate(creds Credentials, header Header, service sdtypes.ServiceId, major sdtypes.MajorVersion, instance sdtypes.InstanceId, method sdtypes.MethodId) Error {
	if header.ProtocolVersion != wireProtocolVersion {
		return ErrWrongProtocolVersion
	}
	if !validMessageType(header.MessageType) {
		return ErrWrongMessageType
	}

	if !v.lookup.KnownService(service, major, instance) {
		return ErrUnknownService
	}
	resolved, ok := v.lookup.ResolveMethod(service, major, instance, method)
	if !ok {
		return ErrUnknownMethod
	}
	if resolved.InterfaceVersion != uint8(major) {
		return ErrWrongInterfaceVersion
	}

	if !v.permissions.Allowed(creds, service, major, instance, method) {
		return ErrSecurityDenied
	}

	return ErrNone
}

func validMessageType(mt MessageType) bool {
	switch mt {
	case MessageTypeRequest, MessageTypeRequestNoReturn, MessageTypeNotification, MessageTypeResponse, MessageTypeError:
		return true
	default:
		return false
	}
}
