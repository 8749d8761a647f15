package session

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// negotiator drives the offer/answer exchange against a Connection. All methods
// run on the session's execution queue, so one offer/answer cycle always
// completes before the next notification is looked at.
type negotiator struct {
	conn       Connection
	emit       func(Event)
	onTerminal func()
	log        logging.LeveledLogger
}

// validateDescription rejects anything that is not an offer or an answer.
func validateDescription(desc webrtc.SessionDescription) error {
	switch desc.Type {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDescriptionType, desc.Type)
	}
}

// negotiationNeeded creates and applies a new local offer. Failures are
// reported as EventError since there is no caller to return them to.
func (n *negotiator) negotiationNeeded() {
	offer, err := n.conn.CreateOffer()
	if err != nil {
		n.fail(&NegotiationError{Op: "create offer", Err: err})
		return
	}
	if err := n.conn.SetLocalDescription(offer); err != nil {
		n.fail(&NegotiationError{Op: "set local description", Err: err})
		return
	}

	n.log.Debugf("local offer applied")
	n.emit(Event{Kind: EventLocalDescription, Description: n.localDescription(offer)})
}

// processDescription applies a remote description. An offer is answered and
// the answer emitted; an answer only updates the remote side.
func (n *negotiator) processDescription(desc webrtc.SessionDescription) error {
	if err := validateDescription(desc); err != nil {
		return err
	}

	if err := n.conn.SetRemoteDescription(desc); err != nil {
		return &NegotiationError{Op: "set remote description", Err: err}
	}
	if desc.Type == webrtc.SDPTypeAnswer {
		n.log.Debugf("remote answer applied")
		return nil
	}

	answer, err := n.conn.CreateAnswer()
	if err != nil {
		return &NegotiationError{Op: "create answer", Err: err}
	}
	if err := n.conn.SetLocalDescription(answer); err != nil {
		return &NegotiationError{Op: "set local description", Err: err}
	}

	n.log.Debugf("remote offer answered")
	n.emit(Event{Kind: EventLocalDescription, Description: n.localDescription(answer)})
	return nil
}

func (n *negotiator) processCandidate(c webrtc.ICECandidateInit) error {
	if err := n.conn.AddICECandidate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrCandidateRejected, err)
	}
	return nil
}

// localCandidate relays a gathered candidate. nil marks the end of gathering
// and is not relayed.
func (n *negotiator) localCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		n.log.Debugf("candidate gathering complete")
		return
	}
	n.emit(Event{Kind: EventICECandidate, Candidate: c})
}

func (n *negotiator) connectionStateChanged(state webrtc.PeerConnectionState) {
	n.log.Debugf("connection state: %s", state)

	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		n.onTerminal()
	}
}

func (n *negotiator) fail(err error) {
	n.log.Warnf("%v", err)
	n.emit(Event{Kind: EventError, Err: err})
}

// localDescription prefers what the connection reports, which may carry
// gathered candidates, over the description that was applied.
func (n *negotiator) localDescription(applied webrtc.SessionDescription) *webrtc.SessionDescription {
	if desc := n.conn.LocalDescription(); desc != nil {
		return desc
	}
	return &applied
}
