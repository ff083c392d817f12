package payload

import (
	"facility-form-backend/internal/codec"
)

// Encode returns the wire bytes of p.
func (p Payload) Encode() ([]byte, error) {
	return codec.Marshal(p)
}

// Decode parses wire bytes produced by Encode.
func Decode(data []byte) (Payload, error) {
	var p Payload
	err := codec.Unmarshal(data, &p)
	return p, err
}
