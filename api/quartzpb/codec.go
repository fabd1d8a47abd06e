// Package quartzpb defines the wire types and gRPC service descriptors for
// Quartz's Core and Settlement/Clearing services. No protoc step runs in
// this tree, so instead of hand-faking the google.golang.org/protobuf
// proto.Message/ProtoReflect interface (a gogoproto-style stub-method
// approach targets an older interface and does not satisfy the
// reflection-based one this module's grpc version requires), every
// message here is a plain Go struct carried over gRPC using a JSON codec
// registered under encoding.RegisterCodec. That keeps google.golang.org/grpc
// genuinely exercised without requiring generated protobuf code.
package quartzpb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered in place of grpc's default "proto" codec so that
// grpc.NewServer()/grpc.Dial() need no special configuration: every
// message on these services is marshalled as JSON.
const codecName = "proto"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
