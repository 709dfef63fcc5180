package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps one registered UI stream. gorilla/websocket allows a
// single concurrent writer per connection, and both the handler's read
// loop (verdict and ack replies) and the hub's notice broadcast write
// to the same stream, so every write is serialized through the client.
type Client struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Client) WriteTyped(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Client) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes the next message. Reads stay on the single
// handler loop, so no locking. The deadline is generous: an exam tab
// can sit idle for minutes.
func (c *Client) ReadJSON(v interface{}) error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.conn.ReadJSON(v)
}

// RemoteAddr reports the peer address for logging.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
