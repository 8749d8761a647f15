// Package signaling carries session descriptions and ICE candidates between
// two peers over a WebSocket until the peer connection is established.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
)

// Message is the JSON structure exchanged over the WebSocket during signaling.
type Message struct {
	Type      MessageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}

// descriptionMessage converts a local description into its wire form.
func descriptionMessage(desc webrtc.SessionDescription) (Message, error) {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		return Message{Type: MsgTypeOffer, SDP: desc.SDP}, nil
	case webrtc.SDPTypeAnswer:
		return Message{Type: MsgTypeAnswer, SDP: desc.SDP}, nil
	default:
		return Message{}, fmt.Errorf("cannot signal %s description", desc.Type)
	}
}

// candidateMessage converts a gathered local candidate into its wire form.
func candidateMessage(c *webrtc.ICECandidate) (Message, error) {
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgTypeCandidate, Candidate: string(data)}, nil
}

// Description returns the session description carried by an offer or answer.
func (m Message) Description() (webrtc.SessionDescription, error) {
	switch m.Type {
	case MsgTypeOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP}, nil
	case MsgTypeAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("message %q carries no description", m.Type)
	}
}

// CandidateInit decodes the ICE candidate carried by a candidate message.
func (m Message) CandidateInit() (webrtc.ICECandidateInit, error) {
	var init webrtc.ICECandidateInit
	if m.Type != MsgTypeCandidate {
		return init, fmt.Errorf("message %q carries no candidate", m.Type)
	}
	if err := json.Unmarshal([]byte(m.Candidate), &init); err != nil {
		return init, fmt.Errorf("failed to parse ICE candidate: %w", err)
	}
	return init, nil
}
