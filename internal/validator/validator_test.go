package validator_test

import (
	"testing"

	"github.com/someipd/someipd/internal/sdtypes"
	"github.com/someipd/someipd/internal/validator"
)

type fakeLookup struct {
	knownService bool
	method       validator.Method
	hasMethod    bool
}

func (f fakeLookup) KnownService(sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId) bool {
	return f.knownService
}
func (f fakeLookup) ResolveMethod(sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId, sdtypes.MethodId) (validator.Method, bool) {
	return f.method, f.hasMethod
}

type fakePermissions struct{ allow bool }

func (f fakePermissions) Allowed(validator.Credentials, sdtypes.ServiceId, sdtypes.MajorVersion, sdtypes.InstanceId, sdtypes.MethodId) bool {
	return f.allow
}

func TestValidator_P10_ChecksRunInOrder(t *testing.T) {
	tests := []struct {
		name    string
		header  validator.Header
		lookup  fakeLookup
		perms   fakePermissions
		wantErr validator.Error
	}{
		{
			name:    "wrong protocol version short-circuits before config/IAM",
			header:  validator.Header{ProtocolVersion: 9, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: false},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrWrongProtocolVersion,
		},
		{
			name:    "wrong message type short-circuits before config/IAM",
			header:  validator.Header{ProtocolVersion: 1, MessageType: 0xFF},
			lookup:  fakeLookup{knownService: false},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrWrongMessageType,
		},
		{
			name:    "unknown service short-circuits before IAM",
			header:  validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: false},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrUnknownService,
		},
		{
			name:    "unknown method short-circuits before IAM",
			header:  validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: true, hasMethod: false},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrUnknownMethod,
		},
		{
			name:    "wrong interface version short-circuits before IAM",
			header:  validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: true, hasMethod: true, method: validator.Method{InterfaceVersion: 2}},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrWrongInterfaceVersion,
		},
		{
			name:    "IAM denial runs last",
			header:  validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: true, hasMethod: true, method: validator.Method{InterfaceVersion: 1}},
			perms:   fakePermissions{allow: false},
			wantErr: validator.ErrSecurityDenied,
		},
		{
			name:    "all checks pass",
			header:  validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest},
			lookup:  fakeLookup{knownService: true, hasMethod: true, method: validator.Method{InterfaceVersion: 1}},
			perms:   fakePermissions{allow: true},
			wantErr: validator.ErrNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New(tt.lookup, tt.perms)
			got := v.Validate(validator.Credentials{}, tt.header, 0x1234, 1, 5, 0x0001)
			if got != tt.wantErr {
				t.Fatalf("Validate() = %v, want %v", got, tt.wantErr)
			}
		})
	}
}

func TestValidator_AllowAllGrantsEverything(t *testing.T) {
	v := validator.New(fakeLookup{knownService: true, hasMethod: true, method: validator.Method{InterfaceVersion: 1}}, nil)
	if got := v.Validate(validator.Credentials{}, validator.Header{ProtocolVersion: 1, MessageType: validator.MessageTypeRequest}, 1, 1, 1, 1); got != validator.ErrNone {
		t.Fatalf("Validate() with nil PermissionChecker = %v, want ErrNone", got)
	}
}
