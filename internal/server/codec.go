package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec implements connect.Codec over plain Go structs using
// encoding/json, rather than the library's built-in protojson-based
// "json" codec which requires a proto.Message. This admin surface has no
// protoc-generated types to marshal (see DESIGN.md), so it registers
// this codec in place of the default under the same "json" name.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// WithJSONCodec returns the connect.ClientOption a someipdctl-style client
// needs to speak this admin surface's plain-JSON wire format, the client
// side of the same codec New registers on the server mux.
func WithJSONCodec() connect.ClientOption {
	return connect.WithClientOptions(connect.WithCodec(jsonCodec{}))
}
