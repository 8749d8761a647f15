// Package app contains the top-level orchestration for host and client roles.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/protocol"
	"github.com/1ureka/peerlink/internal/session"
	"github.com/1ureka/peerlink/internal/transport"
	"github.com/1ureka/peerlink/internal/util"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// chatChannel is what the chat loop needs from a data channel.
type chatChannel interface {
	Label() string
	ReadyState() webrtc.DataChannelState
	Observe(h session.ChannelHandlers) session.Subscription
	Send(ctx context.Context, data []byte) error
	OnMessage(fn func(data []byte))
}

var _ chatChannel = (*transport.Channel)(nil)

// newSession builds a Transport from cfg and wraps it in a Session. extra
// options are applied after the logging ones.
func newSession(ctx context.Context, cfg *config.Config, extra ...session.Option) (*session.Session, error) {
	tr, err := transport.NewTransport(ctx, transport.Options{
		ICEServers:    cfg.ICEServers,
		NACK:          cfg.NACK,
		LoggerFactory: util.LoggerFactory{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	opts := append([]session.Option{
		session.WithLoggerFactory(util.LoggerFactory{}),
		session.OnEvent(func(ev session.Event) {
			logEvent(ev)
			if ev.Kind == session.EventClosed {
				util.LogDebug("PeerConnection %s", tr.ConnectionState())
			}
		}),
	}, extra...)

	sess := session.New(tr, opts...)
	util.LogFields("session created", "id", sess.ID())

	// Cancelling ctx ends the Transport; take the session down with it.
	go func() {
		select {
		case <-tr.Done():
			_ = sess.Close()
		case <-sess.Done():
		}
	}()

	return sess, nil
}

func logEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventLocalDescription:
		util.LogDebug("local %s ready", ev.Description.Type)
	case session.EventICECandidate:
		util.LogDebug("local candidate %s", ev.Candidate.Address)
	case session.EventDataChannel:
		util.LogDebug("remote DataChannel %q", ev.Channel.Label())
	case session.EventTrack:
		util.LogDebug("remote track %s", ev.Track.ID())
	case session.EventError:
		util.LogWarning("session error: %v", ev.Err)
	case session.EventClosed:
		util.LogDebug("session closed")
	}
}

// runChat waits for ch to open, then pipes lines from in to the channel as
// text frames and prints received ones to out. It returns nil when the
// channel or session ends, the peer says bye, or in is exhausted (after
// saying bye itself). signalErr reports the signaling relay; a failure
// there is fatal only while the channel is still connecting.
func runChat(ctx context.Context, done <-chan struct{}, ch chatChannel, signalErr <-chan error, in io.Reader, out io.Writer) error {
	opened := make(chan struct{})
	closed := make(chan struct{})
	var openOnce, closeOnce sync.Once

	sub := ch.Observe(session.ChannelHandlers{
		Open:  func() { openOnce.Do(func() { close(opened) }) },
		Close: func() { closeOnce.Do(func() { close(closed) }) },
	})
	defer sub.Unsubscribe()

	switch ch.ReadyState() {
	case webrtc.DataChannelStateOpen:
		openOnce.Do(func() { close(opened) })
	case webrtc.DataChannelStateClosed:
		closeOnce.Do(func() { close(closed) })
	}

	left := make(chan struct{})
	var leftOnce sync.Once
	var outMu sync.Mutex
	ch.OnMessage(func(data []byte) {
		f, err := protocol.Decode(data)
		if err != nil {
			util.LogWarning("dropping message: %v", err)
			return
		}

		switch f.Type {
		case protocol.TypeText:
			outMu.Lock()
			fmt.Fprintf(out, "peer> %s\n", f.Payload)
			outMu.Unlock()
		case protocol.TypeBye:
			leftOnce.Do(func() { close(left) })
		}
	})

	// ── Wait for the channel ──────────────────────────────────────────
	if err := waitOpen(ctx, done, opened, closed, signalErr); err != nil || !isClosed(opened) {
		return err
	}

	util.LogSuccess("DataChannel %q open, type a message and press Enter", ch.Label())

	// ── Chat ─────────────────────────────────────────────────────────
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	var seq uint32
	send := func(typ uint8, payload []byte) error {
		seq++
		return ch.Send(ctx, protocol.Encode(&protocol.Frame{Type: typ, SeqNum: seq, Payload: payload}))
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := send(protocol.TypeBye, nil); err != nil {
					util.LogDebug("failed to say bye: %v", err)
				}
				return nil
			}
			if line == "" {
				continue
			}
			if err := send(protocol.TypeText, []byte(line)); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}

		case err := <-signalErr:
			if err != nil {
				util.LogDebug("signaling ended after connect: %v", err)
			}
			signalErr = nil

		case <-left:
			util.LogInfo("peer left the chat")
			return nil
		case <-closed:
			return nil
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitOpen blocks until opened, closed or done fires. An open channel wins
// over a relay error that is ready at the same time.
func waitOpen(ctx context.Context, done, opened, closed <-chan struct{}, signalErr <-chan error) error {
	for {
		if isClosed(opened) {
			return nil
		}
		select {
		case <-opened:
			return nil
		case <-closed:
			return nil
		case <-done:
			return nil
		case err := <-signalErr:
			if isClosed(opened) {
				if err != nil {
					util.LogDebug("signaling ended after connect: %v", err)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("signaling failed: %w", err)
			}
			// Relay finished cleanly; keep waiting on the channel itself.
			signalErr = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
