package signaling

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1ureka/peerlink/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the host-side WebSocket server used for signaling. Only the first
// client with the right PIN is handed out; later ones are refused.
type Server struct {
	pin      string
	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener
	connCh   chan *websocket.Conn
	accepted atomic.Bool
}

// NewServer creates a new signaling server with the given PIN for authentication.
func NewServer(pin string) *Server {
	s := &Server{
		pin:    pin,
		connCh: make(chan *websocket.Conn, 1),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", requirePIN(pin), s.handleWS)
	s.engine = r

	return s
}

// requirePIN rejects requests whose "pin" query parameter does not match.
func requirePIN(pin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query("pin")
		if subtle.ConstantTimeCompare([]byte(got), []byte(pin)) != 1 {
			util.LogWarning("signaling: rejected client %s: invalid PIN", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid PIN"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogDebug("signaling: upgrade failed: %v", err)
		return
	}

	if !s.accepted.CompareAndSwap(false, true) {
		util.LogWarning("signaling: refused client %s: already connected", c.ClientIP())
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		_ = conn.Close()
		return
	}

	// connCh has room for exactly the one accepted connection.
	s.connCh <- conn
	util.LogDebug("signaling: client %s connected", c.ClientIP())
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening on addr (":0" or "127.0.0.1:0" picks a random port).
// Returns the assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.engine}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("signaling: server stopped: %v", err)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// WaitForClient blocks until a client connects or ctx is cancelled.
func (s *Server) WaitForClient(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections. Already upgraded connections are
// not affected.
func (s *Server) Close() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
