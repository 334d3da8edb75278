// Package grpcjson registra un codec JSON per gRPC; i messaggi sono le strutture
// JSON già usate sul canale HTTP.
package grpcjson

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Name è il content-subtype: application/grpc+json.
const Name = "json"

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(Codec{})
}

// CallOption seleziona il codec per una chiamata client.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
