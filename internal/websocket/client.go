package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client is one browser tab. Tabs never send anything meaningful, so the
// connection is write-only from the server's side.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	memberID string
	signals  chan struct{}
}

func newClient(hub *Hub, conn *ws.Conn, memberID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		signals:  make(chan struct{}, 1),
	}
}

// serve joins the hub and forwards signals until the tab goes away or ctx
// ends.
func (c *Client) serve(ctx context.Context) {
	c.hub.join(c)
	defer c.hub.leave(c)

	// CloseRead discards incoming frames and cancels ctx when the peer closes.
	ctx = c.conn.CloseRead(ctx)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-c.signals:
			if !ok {
				return
			}
			if err := c.write(ctx); err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, UpdateSignal)
}
