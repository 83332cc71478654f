package posestream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phanxgames/tinsel"
)

// Client is a pose producer connection. Send methods are safe for
// concurrent use.
type Client struct {
	conn    *websocket.Conn
	Welcome WelcomeMsg

	mu sync.Mutex
}

// Dial connects to a Server at url (ws:// or wss://) and performs the
// HELLO/WELCOME handshake.
func Dial(ctx context.Context, url, producer string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{conn: conn}
	hello := HelloMsg{Type: TypeHello, ProtocolVersion: ProtocolVersion, Producer: producer}
	if err := writeJSON(conn, hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if err := json.Unmarshal(msg, &c.Welcome); err != nil || c.Welcome.Type != TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("read welcome: unexpected message %q", msg)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return c, nil
}

// SendPose sends a processed pose frame.
func (c *Client) SendPose(f tinsel.PoseFrame) error {
	return c.send(PoseMsg{Type: TypePose, PoseFrame: f})
}

// SendLandmarks sends raw fingertip landmarks.
func (c *Client) SendLandmarks(m LandmarksMsg) error {
	m.Type = TypeLandmarks
	return c.send(m)
}

func (c *Client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSON(c.conn, v)
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
