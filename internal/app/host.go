package app

import (
	"context"
	"fmt"

	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/transport"
	"github.com/1ureka/peerlink/internal/util"
)

// RunHost orchestrates the full host lifecycle:
//  1. Start the signaling server with the configured (or a random) PIN
//  2. Wait for the client to connect via WebSocket
//  3. Create the session and start relaying signaling messages
//  4. Create the chat DataChannel, which starts negotiation
//  5. Chat until the channel or session ends
func RunHost(ctx context.Context, cfg *config.Config) error {
	// ── 1. Start signaling server ──────────────────────────────────────
	pin := cfg.PIN
	if pin == "" {
		pin = signaling.GeneratePIN(4)
	}
	server := signaling.NewServer(pin)
	port, err := server.Start(cfg.Listen)
	if err != nil {
		return err
	}
	defer server.Close()

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "╔══════════════════════════════════════════╗")
	fmt.Fprintln(stdout, "║        WebSocket Signaling Server        ║")
	fmt.Fprintln(stdout, "╠══════════════════════════════════════════╣")
	fmt.Fprintf(stdout, "║  Port : %-32d ║\n", port)
	fmt.Fprintf(stdout, "║  PIN  : %-32s ║\n", pin)
	fmt.Fprintln(stdout, "╚══════════════════════════════════════════╝")
	fmt.Fprintln(stdout)
	util.LogInfo("waiting for client...")

	// ── 2. Wait for client ─────────────────────────────────────────────
	wsConn, err := server.WaitForClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for client: %w", err)
	}
	_ = server.Close()
	util.LogInfo("client connected")

	// ── 3. Session + relay ─────────────────────────────────────────────
	sess, err := newSession(ctx, cfg)
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

	// ── 4. Chat channel ────────────────────────────────────────────────
	dc, err := sess.CreateDataChannel(cfg.ChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("failed to create DataChannel: %w", err)
	}
	ch, ok := dc.(*transport.Channel)
	if !ok {
		return fmt.Errorf("unexpected DataChannel type %T", dc)
	}

	// ── 5. Chat ────────────────────────────────────────────────────────
	return runChat(ctx, sess.Done(), ch, signalErr, stdin, stdout)
}
