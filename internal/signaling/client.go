package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Dial connects to the host's signaling endpoint. The URL should include the
// PIN as a query parameter, e.g.:
//
//	wss://example.devtunnels.ms/ws?pin=1234
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return conn, nil
}

// NormalizeURL turns user input (a bare host, an https tunnel URL or a full
// ws URL) into the signaling endpoint URL, appending pin when non-empty.
// Schemes other than ws default to wss.
func NormalizeURL(raw, pin string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %q", raw)
	}

	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "http" {
		scheme = "ws"
	}

	q := u.Query()
	if pin != "" {
		q.Set("pin", pin)
	}

	out := url.URL{Scheme: scheme, Host: u.Host, Path: "/ws", RawQuery: q.Encode()}
	return out.String(), nil
}
