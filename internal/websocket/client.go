package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one listening connection of a family member.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	family string
	send   chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, family string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		family: family,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run streams the family's events to the connection until either side
// goes away. Inbound frames are not expected, so reads only watch for close.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx = c.conn.CloseRead(ctx)
	if err := c.stream(ctx); err != nil {
		c.conn.Close(ws.StatusGoingAway, "")
	}
}

func (c *Client) stream(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return c.conn.Close(ws.StatusNormalClosure, "")
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
