package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec serializes plain Go messages as JSON. It is registered under
// "json", so clients send Content-Type application/json.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// WithJSON is the codec option for ReceiptService handlers and clients.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
