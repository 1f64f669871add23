package sdnet_test

import (
	"testing"

	"github.com/someipd/someipd/internal/sdmessage"
	"github.com/someipd/someipd/internal/sdmessage/entries"
	"github.com/someipd/someipd/internal/sdnet"
	"github.com/someipd/someipd/internal/sdtypes"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	t.Parallel()

	msg := sdmessage.Message{
		SessionID:  7,
		RebootFlag: true,
		Entries: []entries.RawEntry{
			{
				Kind:       entries.TypeFindService,
				Service:    sdtypes.ServiceId(0x1234),
				Instance:   sdtypes.InstanceId(1),
				Major:      sdtypes.MajorVersion(1),
				Minor:      sdtypes.MinorVersionAny,
				TTLSeconds: 3,
			},
		},
		Options: []entries.Option{
			{Endpoint: sdtypes.Endpoint{Address: "10.0.0.5", Port: 30509, TCP: false}},
		},
	}

	data, err := sdnet.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	got, err := sdnet.DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	if got.SessionID != msg.SessionID || got.RebootFlag != msg.RebootFlag {
		t.Errorf("header mismatch: got %+v, want %+v", got, msg)
	}
	if len(got.Entries) != 1 || got.Entries[0].Service != msg.Entries[0].Service {
		t.Errorf("entries mismatch: got %+v, want %+v", got.Entries, msg.Entries)
	}
	if len(got.Options) != 1 || got.Options[0].Endpoint.Address != "10.0.0.5" {
		t.Errorf("options mismatch: got %+v", got.Options)
	}
}

func TestDecodeMessageInvalid(t *testing.T) {
	t.Parallel()

	if _, err := sdnet.DecodeMessage([]byte("not a gob stream")); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}
