package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket upgrade.
	handshakeTimeout = 15 * time.Second

	// maxFrameSize caps a single inbound frame.
	maxFrameSize = 64 * 1024

	socketPath = "/notifications/ws"
)

// Conn is an open duplex transport.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the transport
	// closes.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn to a WebSocket URL.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// BuildURL derives the push channel URL from the HTTP(S) API base and a
// connection ticket.
func BuildURL(baseURL, ticket string) (string, error) {
	base := strings.TrimRight(baseURL, "/")

	var wsBase string
	switch {
	case strings.HasPrefix(base, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "wss://"), strings.HasPrefix(base, "ws://"):
		wsBase = base
	default:
		return "", fmt.Errorf("unsupported api base url %q", baseURL)
	}

	return wsBase + socketPath + "?ticket=" + url.QueryEscape(ticket), nil
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	// HandshakeTimeout defaults to 15s when zero.
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection to rawURL.
func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = handshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetReadLimit(maxFrameSize)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame before dropping the connection.
func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}
