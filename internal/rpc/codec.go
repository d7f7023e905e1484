package rpc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype negotiated on every call made with
// grpc.CallContentSubtype(codecName); the server looks up the codec
// registered under the same name to decode it.
const codecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec with gob
// rather than protobuf. The storage RPC surface here is declared by a
// hand-authored grpc.ServiceDesc rather than protoc-generated stubs
// (no protoc in this environment — see DESIGN.md's Open Question
// resolution), so there are no generated message types to marshal
// with the default proto codec; gob is what internal/mutation and
// internal/metad already use for their own wire/log encodings, so the
// RPC layer follows the same convention instead of introducing a
// one-off encoding nothing else in the tree needs.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
