// Package rpc hosts the internal gRPC wire contracts shared between the GC
// and MC processes (C6, C7, C9-C12): a JSON codec in place of protobuf
// generated code, and the hand-written service descriptors for the fleet
// registry and assignment-acceptor RPCs.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype selecting jsonCodec. Every call
// across this module's internal RPCs passes grpc.CallContentSubtype(CodecName).
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec by marshaling plain Go structs as
// JSON, so the hand-written service descriptors below need no generated
// proto.Message implementations.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
