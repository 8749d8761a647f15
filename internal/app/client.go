package app

import (
	"context"
	"fmt"

	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/session"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/transport"
	"github.com/1ureka/peerlink/internal/util"
)

// RunClient orchestrates the full client lifecycle:
//  1. Connect to the host's signaling server
//  2. Create the session and start relaying signaling messages
//  3. Wait for the host's chat DataChannel to arrive
//  4. Chat until the channel or session ends
func RunClient(ctx context.Context, cfg *config.Config) error {
	// ── 1. Connect to signaling server ─────────────────────────────────
	wsURL, err := signaling.NormalizeURL(cfg.SignalURL, cfg.PIN)
	if err != nil {
		return err
	}
	util.LogInfo("connecting to host...")
	wsConn, err := signaling.Dial(ctx, wsURL)
	if err != nil {
		return err
	}
	util.LogDebug("WS connected: %s", wsURL)

	// ── 2. Session + relay ─────────────────────────────────────────────
	// The channel arrives as an event; subscribe before the relay can
	// deliver the offer.
	channels := make(chan session.DataChannel, 1)
	sess, err := newSession(ctx, cfg, session.OnEvent(func(ev session.Event) {
		if ev.Kind != session.EventDataChannel || ev.Channel.Label() != cfg.ChannelLabel {
			return
		}
		select {
		case channels <- ev.Channel:
		default:
		}
	}))
	if err != nil {
		wsConn.Close()
		return err
	}
	defer sess.Close()

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	signalErr := make(chan error, 1)
	go func() {
		signalErr <- signaling.NewRelay(wsConn, sess).Run(relayCtx)
	}()

	// ── 3. Wait for the host's channel ─────────────────────────────────
	var dc session.DataChannel
	select {
	case dc = <-channels:
	case err := <-signalErr:
		if err == nil {
			return nil
		}
		return fmt.Errorf("signaling failed: %w", err)
	case <-sess.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	ch, ok := dc.(*transport.Channel)
	if !ok {
		return fmt.Errorf("unexpected DataChannel type %T", dc)
	}

	// ── 4. Chat ────────────────────────────────────────────────────────
	return runChat(ctx, sess.Done(), ch, signalErr, stdin, stdout)
}
