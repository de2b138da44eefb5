package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grouptalk/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientMessage
	writeCh     chan any
	closeCh     chan struct{}
	closeOnce   sync.Once
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientMessage, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockWS) closed() bool {
	select {
	case <-m.closeCh:
		return true
	default:
		return false
	}
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) SetWriteDeadline(time.Time) error {
	return nil
}

func (m *mockWS) ReadJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case msg, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		// Copy to v (assuming v is *models.ClientMessage)
		if ptr, ok := v.(*models.ClientMessage); ok {
			*ptr = msg
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockHub struct {
	joinCh     chan string
	leaveCh    chan string
	dispatchCh chan models.ClientMessage
	joinErr    error
	reply      *models.ServerMessage
}

func newMockHub() *mockHub {
	return &mockHub{
		joinCh:     make(chan string, 10),
		leaveCh:    make(chan string, 10),
		dispatchCh: make(chan models.ClientMessage, 10),
	}
}

func (m *mockHub) Join(ctx context.Context, userID string, conn *Connection) error {
	m.joinCh <- userID
	return m.joinErr
}

func (m *mockHub) Leave(userID string, conn *Connection) {
	m.leaveCh <- userID
}

func (m *mockHub) Dispatch(ctx context.Context, userID string, msg models.ClientMessage) *models.ServerMessage {
	m.dispatchCh <- msg
	return m.reply
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()
	userID := "user1"

	conn := NewConnection(hub, ws, userID, 10, time.Second)
	if conn == nil {
		t.Fatal("NewConnection returned nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Handle in goroutine
	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// Verify Join was called
	select {
	case id := <-hub.joinCh:
		if id != userID {
			t.Errorf("Expected Join with %s, got %s", userID, id)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Join not called on Handle")
	}

	// 1. Send message from Client -> Hub
	clientMsg := models.ClientMessage{
		Type:    models.ClientMessageTypeSend,
		GroupID: "group1",
		Text:    "hello",
	}
	ws.readCh <- clientMsg

	select {
	case received := <-hub.dispatchCh:
		if received.Text != clientMsg.Text {
			t.Errorf("Hub received wrong content: %v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("Hub did not receive dispatched message")
	}

	// 2. Push message from Server -> Client
	serverMsg := models.ServerMessage{
		Type:    models.ServerMessageTypeMessage,
		Message: &models.MessageView{Message: models.Message{ID: "m1", Text: "hi back"}},
	}
	if err := conn.Push(ctx, serverMsg); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	select {
	case received := <-ws.writeCh:
		sMsg, ok := received.(models.ServerMessage)
		if !ok {
			t.Fatalf("WS received wrong type: %T", received)
		}
		if sMsg.Message == nil || sMsg.Message.Text != "hi back" {
			t.Errorf("WS received wrong content: %v", sMsg)
		}
	case <-time.After(1 * time.Second):
		t.Error("WS did not receive server message")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after cancel")
	}

	// Verify Leave called
	select {
	case id := <-hub.leaveCh:
		if id != userID {
			t.Errorf("Expected Leave with %s, got %s", userID, id)
		}
	default:
		t.Error("Leave not called")
	}

	// Verify WS Close called
	if !ws.closed() {
		t.Error("WS Close not called")
	}

	if err := conn.Push(context.Background(), serverMsg); !errors.Is(err, errConnectionClosed) {
		t.Errorf("Push after close: expected errConnectionClosed, got %v", err)
	}
}

func TestConnection_DispatchReply(t *testing.T) {
	hub := newMockHub()
	hub.reply = &models.ServerMessage{Type: models.ServerMessageTypeError, Code: models.ErrCodeNotFound}
	ws := newMockWS()

	conn := NewConnection(hub, ws, "user1", 10, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = conn.Handle(ctx) }()

	ws.readCh <- models.ClientMessage{Type: models.ClientMessageTypeLike, MessageID: "nope"}

	select {
	case received := <-ws.writeCh:
		sMsg := received.(models.ServerMessage)
		if sMsg.Type != models.ServerMessageTypeError || sMsg.Code != models.ErrCodeNotFound {
			t.Errorf("unexpected reply: %+v", sMsg)
		}
	case <-time.After(1 * time.Second):
		t.Error("reply not written")
	}
}

func TestConnection_JoinRejected(t *testing.T) {
	hub := newMockHub()
	hub.joinErr = models.NotFound("user", "ghost")
	ws := newMockWS()

	conn := NewConnection(hub, ws, "ghost", 10, time.Second)
	err := conn.Handle(context.Background())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	select {
	case received := <-ws.writeCh:
		if sMsg := received.(models.ServerMessage); sMsg.Code != models.ErrCodeNotFound {
			t.Errorf("unexpected frame: %+v", sMsg)
		}
	default:
		t.Error("error frame not written")
	}
	if !ws.closed() {
		t.Error("WS Close not called")
	}
	select {
	case <-hub.leaveCh:
		t.Error("Leave called for a session that never joined")
	default:
	}
}

func TestConnection_PushFailsFastWhenFull(t *testing.T) {
	conn := NewConnection(newMockHub(), newMockWS(), "user1", 1, time.Second)
	frame := models.ServerMessage{Type: models.ServerMessageTypeMessage}

	if err := conn.Push(context.Background(), frame); err != nil {
		t.Fatalf("first push: %v", err)
	}

	// Nobody drains the queue, yet the second push must not wait for ctx.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	start := time.Now()
	if err := conn.Push(ctx, frame); !errors.Is(err, errOutboundFull) {
		t.Errorf("expected errOutboundFull, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("push on a full queue blocked for %v", elapsed)
	}
}

func TestConnection_WSError(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()
	userID := "user2"

	conn := NewConnection(hub, ws, userID, 10, time.Second)

	// Simulate ReadJSON error immediatelly
	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error from Handle, got nil")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed() {
		t.Error("WS Close not called")
	}
}
