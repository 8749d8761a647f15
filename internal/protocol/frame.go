// Package protocol defines the frame format of the chat DataChannel.
package protocol

// Frame type constants.
const (
	TypeText uint8 = 0x01 // UTF-8 chat line
	TypeBye  uint8 = 0x02 // sender is leaving; no payload
)

// HeaderSize is the fixed header size: Type(1) + SeqNum(4).
const HeaderSize = 5

// Frame is one chat message transmitted over the DataChannel.
type Frame struct {
	Type    uint8  // TypeText or TypeBye
	SeqNum  uint32 // per-sender sequence number, starting at 1
	Payload []byte // only used for TypeText
}
