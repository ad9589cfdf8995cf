package instrumentpb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// wireCodec marshals the plain Go structs in this package over the wire.
// They are hand-maintained stand-ins for protoc-gen-go output, not real
// proto.Message implementations (no Reset/ProtoReflect), so gRPC's
// built-in "proto" codec -- which type-asserts every payload to
// proto.Message -- cannot carry them. Registering a codec under the name
// "proto" replaces grpc's default for this process, the same hook
// grpc-go documents for swapping codecs, so SendMsg/RecvMsg work without
// generating real protobuf bindings.
//
// This trades protobuf wire compatibility for a working client built
// from these types: messages are exchanged as JSON, so only a peer that
// uses this same codec can be read; a server sending protobuf-encoded
// messages cannot be decoded. See DESIGN.md for why that tradeoff was
// taken here.
type wireCodec struct{}

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (wireCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(wireCodec{})
}
