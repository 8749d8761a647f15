package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a Frame into a byte slice for DataChannel transmission.
func Encode(f *Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = f.Type
	binary.BigEndian.PutUint32(buf[1:5], f.SeqNum)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// Decode deserializes a byte slice into a Frame. Unknown types are rejected.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	f := &Frame{
		Type:   data[0],
		SeqNum: binary.BigEndian.Uint32(data[1:5]),
	}
	switch f.Type {
	case TypeText, TypeBye:
	default:
		return nil, fmt.Errorf("unknown frame type 0x%02x", f.Type)
	}

	if len(data) > HeaderSize {
		f.Payload = make([]byte, len(data)-HeaderSize)
		copy(f.Payload, data[HeaderSize:])
	}
	return f, nil
}
