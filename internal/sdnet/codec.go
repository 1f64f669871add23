package sdnet

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/someipd/someipd/internal/sdmessage"
)

// EncodeMessage serializes a decoded SD message for transmission. The
// actual SOME/IP-SD wire byte layout (entry/option binary framing) is
// out of scope (spec.md Non-goals); gob is this package's stand-in
// envelope so the socket layer has a concrete, round-trippable format to
// exercise without inventing a byte-for-byte protocol codec.
func EncodeMessage(msg sdmessage.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("sdnet: encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMessage is EncodeMessage's inverse.
func DecodeMessage(data []byte) (sdmessage.Message, error) {
	var msg sdmessage.Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return sdmessage.Message{}, fmt.Errorf("sdnet: decode message: %w", err)
	}
	return msg, nil
}
