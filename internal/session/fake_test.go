package session

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface checks.
var (
	_ Connection  = (*fakeConn)(nil)
	_ DataChannel = (*fakeChannel)(nil)
)

// fakeConn implements Connection in memory. Each capability call is recorded
// and can be made to fail; notifications are fired by the test.
type fakeConn struct {
	mu sync.Mutex

	offer  webrtc.SessionDescription
	answer webrtc.SessionDescription
	local  *webrtc.SessionDescription
	remote *webrtc.SessionDescription

	createOfferErr  error
	createAnswerErr error
	setLocalErr     error
	setRemoteErr    error
	addCandidateErr error

	// When offerGate is set, CreateOffer signals offerEntered and then blocks
	// until the test sends on offerGate. The offer is read after release.
	offerGate    chan struct{}
	offerEntered chan struct{}

	calls      []string
	candidates []webrtc.ICECandidateInit
	nextChan   *fakeChannel
	closeCount int

	nextSub int
	subs    map[int]Handlers
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		offer:  webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"},
		answer: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"},
		subs:   make(map[int]Handlers),
	}
}

func (f *fakeConn) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeConn) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	f.record("CreateOffer")
	gate, entered := f.offerGate, f.offerEntered
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offer, f.createOfferErr
}

// gateOffers makes every later CreateOffer block until releaseOffer.
func (f *fakeConn) gateOffers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offerGate = make(chan struct{})
	f.offerEntered = make(chan struct{}, 8)
}

// waitOfferEntered waits until a CreateOffer call is blocked on the gate.
func (f *fakeConn) waitOfferEntered(t *testing.T) {
	t.Helper()
	select {
	case <-f.offerEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CreateOffer")
	}
}

// releaseOffer lets one blocked CreateOffer return sdp as its offer.
func (f *fakeConn) releaseOffer(sdp string) {
	f.mu.Lock()
	f.offer = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	gate := f.offerGate
	f.mu.Unlock()
	gate <- struct{}{}
}

func (f *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAnswer")
	return f.answer, f.createAnswerErr
}

func (f *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetLocalDescription")
	if f.setLocalErr != nil {
		return f.setLocalErr
	}
	f.local = &desc
	return nil
}

func (f *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetRemoteDescription")
	if f.setRemoteErr != nil {
		return f.setRemoteErr
	}
	f.remote = &desc
	return nil
}

func (f *fakeConn) LocalDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

func (f *fakeConn) RemoteDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote
}

func (f *fakeConn) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddICECandidate")
	if f.addCandidateErr != nil {
		return f.addCandidateErr
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeConn) CreateDataChannel(label string, _ *webrtc.DataChannelInit) (DataChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateDataChannel")
	ch := f.nextChan
	if ch == nil {
		ch = newFakeChannel(label, nil, webrtc.DataChannelStateConnecting)
	}
	f.nextChan = nil
	return ch, nil
}

func (f *fakeConn) AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddTrack")
	return nil, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Close")
	f.closeCount++
	return nil
}

func (f *fakeConn) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeConn) Subscribe(h Handlers) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = h
	return NewSubscription(func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	})
}

func (f *fakeConn) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeConn) handlers() []Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Handlers, 0, len(f.subs))
	for _, h := range f.subs {
		out = append(out, h)
	}
	return out
}

func (f *fakeConn) fireNegotiationNeeded() {
	for _, h := range f.handlers() {
		h.NegotiationNeeded()
	}
}

func (f *fakeConn) fireICECandidate(c *webrtc.ICECandidate) {
	for _, h := range f.handlers() {
		h.ICECandidate(c)
	}
}

func (f *fakeConn) fireState(state webrtc.PeerConnectionState) {
	for _, h := range f.handlers() {
		h.ConnectionStateChange(state)
	}
}

func (f *fakeConn) fireDataChannel(ch DataChannel) {
	for _, h := range f.handlers() {
		h.DataChannel(ch)
	}
}

func (f *fakeConn) fireTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	for _, h := range f.handlers() {
		h.Track(track, receiver)
	}
}

// fakeChannel implements DataChannel; tests drive its ready state.
type fakeChannel struct {
	mu      sync.Mutex
	label   string
	id      *uint16
	state   webrtc.DataChannelState
	nextSub int
	subs    map[int]ChannelHandlers
}

func newFakeChannel(label string, id *uint16, state webrtc.DataChannelState) *fakeChannel {
	return &fakeChannel{
		label: label,
		id:    id,
		state: state,
		subs:  make(map[int]ChannelHandlers),
	}
}

func (c *fakeChannel) ID() *uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) ReadyState() webrtc.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Observe(h ChannelHandlers) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = h
	return NewSubscription(func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	})
}

func (c *fakeChannel) Observers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *fakeChannel) snapshot() []ChannelHandlers {
	out := make([]ChannelHandlers, 0, len(c.subs))
	for _, h := range c.subs {
		out = append(out, h)
	}
	return out
}

// open assigns id (if given) and fires Open.
func (c *fakeChannel) open(id *uint16) {
	c.mu.Lock()
	if id != nil {
		c.id = id
	}
	c.state = webrtc.DataChannelStateOpen
	hs := c.snapshot()
	c.mu.Unlock()

	for _, h := range hs {
		h.Open()
	}
}

func (c *fakeChannel) close() {
	c.mu.Lock()
	c.state = webrtc.DataChannelStateClosed
	hs := c.snapshot()
	c.mu.Unlock()

	for _, h := range hs {
		h.Close()
	}
}

func (c *fakeChannel) fail(err error) {
	c.mu.Lock()
	hs := c.snapshot()
	c.mu.Unlock()

	for _, h := range hs {
		h.Error(err)
	}
}

func idPtr(id uint16) *uint16 { return &id }

// recorder collects emitted events in order.
type recorder struct {
	ch chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 64)}
}

func (r *recorder) handle(ev Event) { r.ch <- ev }

// next waits for the next event.
func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// drain collects every event up to and including EventClosed.
func (r *recorder) drain(t *testing.T) []Event {
	t.Helper()
	var out []Event
	for {
		ev := r.next(t)
		out = append(out, ev)
		if ev.Kind == EventClosed {
			return out
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
