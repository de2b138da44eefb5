package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"grouptalk/internal/models"
)

var (
	errConnectionClosed = errors.New("connection closed")
	errOutboundFull     = errors.New("outbound buffer full")
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
}

type messageHub interface {
	Join(ctx context.Context, userID string, conn *Connection) error
	Leave(userID string, conn *Connection)
	Dispatch(ctx context.Context, userID string, msg models.ClientMessage) *models.ServerMessage
}

// Connection is one websocket session of a user. Inbound frames are read
// and dispatched by the read pump. Outbound frames are queued by Push and
// written by the main loop, which is the only writer of the socket.
type Connection struct {
	ws           wsConnection
	hub          messageHub
	userID       string
	writeTimeout time.Duration
	fromServer   chan models.ServerMessage
	errorCh      chan error
	done         chan struct{}
	closeOnce    sync.Once
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	userID string,
	outboundBuffer int,
	writeTimeout time.Duration,
) *Connection {
	if outboundBuffer <= 0 {
		outboundBuffer = 64
	}
	return &Connection{
		ws:           ws,
		hub:          hub,
		userID:       userID,
		writeTimeout: writeTimeout,
		fromServer:   make(chan models.ServerMessage, outboundBuffer),
		errorCh:      make(chan error, 2),
		done:         make(chan struct{}),
	}
}

// Push queues frame for the client and never blocks. A full queue means the
// client is not keeping up; Push then fails with errOutboundFull.
func (c *Connection) Push(ctx context.Context, frame models.ServerMessage) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case c.fromServer <- frame:
		return nil
	default:
		return errOutboundFull
	}
}

// Close shuts the socket down. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Connection) Handle(ctx context.Context) error {
	if err := c.hub.Join(ctx, c.userID, c); err != nil {
		_ = c.write(errorFrame(err))
		_ = c.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		c.hub.Leave(c.userID, c)
		close(c.errorCh)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
		select {
		case err = <-c.errorCh:
		default:
		}
	}
	_ = c.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errConnectionClosed) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var msg models.ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				return errConnectionClosed
			default:
				return err
			}
		}
		if err := c.processClientMessage(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.fromServer:
			if err := c.write(msg); err != nil {
				return err
			}
		case <-c.done:
			return errConnectionClosed
		case <-ctx.Done():
			return nil
		}
	}
}

// write sends one frame, giving up after writeTimeout.
func (c *Connection) write(frame models.ServerMessage) error {
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteJSON(frame)
}

func (c *Connection) processClientMessage(ctx context.Context, msg models.ClientMessage) error {
	reply := c.hub.Dispatch(ctx, c.userID, msg)
	if reply == nil {
		return nil
	}
	return c.Push(ctx, *reply)
}

func errorFrame(err error) models.ServerMessage {
	return models.ServerMessage{
		Type:  models.ServerMessageTypeError,
		Code:  models.Code(err),
		Error: err.Error(),
	}
}
