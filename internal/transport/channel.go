package transport

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/session"
	"github.com/1ureka/peerlink/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// Compile-time interface check.
var _ session.DataChannel = (*Channel)(nil)

// Channel wraps a pion DataChannel. pion keeps a single handler per event, so
// Channel owns those slots and fans them out to any number of observers. It
// also adds backpressure-aware sending.
type Channel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}

	mu   sync.Mutex
	next int
	subs map[int]session.ChannelHandlers
}

// newChannel takes over raw's open/close/error handlers. Call it before raw can
// open, i.e. right after creation or inside OnDataChannel.
func newChannel(raw *webrtc.DataChannel) *Channel {
	c := &Channel{
		raw:       raw,
		sendReady: make(chan struct{}, 1),
		subs:      make(map[int]session.ChannelHandlers),
	}

	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case c.sendReady <- struct{}{}:
		default:
		}
	})

	raw.OnOpen(func() {
		for _, h := range c.handlers() {
			if h.Open != nil {
				h.Open()
			}
		}
	})
	raw.OnClose(func() {
		for _, h := range c.handlers() {
			if h.Close != nil {
				h.Close()
			}
		}
	})
	raw.OnError(func(err error) {
		for _, h := range c.handlers() {
			if h.Error != nil {
				h.Error(err)
			}
		}
	})

	return c
}

func (c *Channel) handlers() []session.ChannelHandlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.ChannelHandlers, 0, len(c.subs))
	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		out = append(out, c.subs[id])
	}
	return out
}

// Observe implements session.DataChannel.
func (c *Channel) Observe(h session.ChannelHandlers) session.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	c.next++
	c.subs[id] = h

	return session.NewSubscription(func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	})
}

func (c *Channel) ID() *uint16                         { return c.raw.ID() }
func (c *Channel) Label() string                       { return c.raw.Label() }
func (c *Channel) ReadyState() webrtc.DataChannelState { return c.raw.ReadyState() }

// Send writes data, blocking while the buffered amount is above the high water
// mark until it drains or ctx is cancelled.
func (c *Channel) Send(ctx context.Context, data []byte) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-c.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.raw.Send(data); err != nil {
		return err
	}

	util.Stats.AddSent(len(data))
	return nil
}

// OnMessage registers the callback for inbound messages.
func (c *Channel) OnMessage(fn func(data []byte)) {
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		fn(msg.Data)
	})
}

// Close closes the underlying DataChannel.
func (c *Channel) Close() error {
	return c.raw.Close()
}
