package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned by Send after the connection has gone away.
var ErrClientClosed = errors.New("room connection closed")

// Client is a participant's connection to the room.
type Client struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	err     error
}

// Dial connects to the room at url and delivers every decoded command to handler
// from a single goroutine.
func Dial(ctx context.Context, url string, handler func(events.Message)) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial room %s: %w", url, err)
	}

	c := &Client{
		conn:         conn,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}
	go c.readLoop(handler)

	log.Info().Str("url", url).Msg("connected to room")
	return c, nil
}

func (c *Client) readLoop(handler func(events.Message)) {
	defer c.shutdown(nil)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("room connection lost")
				c.shutdown(err)
			}
			return
		}

		msg, err := events.Parse(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed room message")
			continue
		}
		handler(msg)
	}
}

// Send writes msg to the room.
func (c *Client) Send(msg events.Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.shutdown(nil)
	return nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, nil for a clean close.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		c.conn.Close()
		close(c.done)
	})
}
