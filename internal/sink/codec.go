package sink

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// gobCodec is a minimal grpc-go encoding.Codec backed by encoding/gob
// instead of protobuf. It lets the gRPC sink call through a plain
// *grpc.ClientConn without protoc-generated stubs: the wire format is
// still framed and transported by grpc-go exactly as protobuf payloads
// are, only the marshaling step differs.
type gobCodec struct{}

const codecName = "vktiming-gob"

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
