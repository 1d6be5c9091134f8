// Package chat drives a two-party chat session: it resolves the room
// for a participant pair, loads history once, keeps a live subscription
// on the room and publishes outgoing messages to it.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkim-dev/gochat-client/internal/api"
	"github.com/dkim-dev/gochat-client/internal/stomp"
	"github.com/dkim-dev/gochat-client/internal/types"
)

type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// RoomAPI is the slice of the REST client a session needs.
type RoomAPI interface {
	GetChatRoom(ctx context.Context, participant1Id, participant2Id string) (string, error)
	CreateChatRoom(ctx context.Context, participant1Id, participant2Id string) (string, error)
	GetMessages(ctx context.Context, chatRoomId string) ([]types.Message, error)
}

// Channel is the live connection a session subscribes and publishes on.
// *stomp.Conn satisfies it.
type Channel interface {
	Subscribe(destination string, handler stomp.MessageHandler) (string, error)
	Send(destination string, body []byte) error
	Err() <-chan error
	Close() error
}

// Dialer opens a fresh Channel. Each reconnect attempt gets a new one.
type Dialer func(ctx context.Context) (Channel, error)

// ReconnectPolicy bounds the channel's reconnect behavior. MaxRetries
// of zero retries forever.
type ReconnectPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries uint64
}

func (p ReconnectPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if p.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxRetries)
	}

	return backoff.WithContext(bo, ctx)
}

// Session is one mounted chat between the current user and a receiver.
// It is not reusable after Close.
type Session struct {
	api    RoomAPI
	dial   Dialer
	log    *log.Logger
	policy ReconnectPolicy

	selfID     string
	receiverID string

	mu      sync.Mutex
	roomID  string
	fetched bool
	msgs    []types.Message
	state   State
	conn    Channel
	closed  bool
	notify  func(types.Message)

	done chan struct{}
}

func NewSession(api RoomAPI, dial Dialer, selfID, receiverID string, policy ReconnectPolicy, logger *log.Logger) *Session {
	return &Session{
		api:        api,
		dial:       dial,
		log:        logger,
		policy:     policy,
		selfID:     selfID,
		receiverID: receiverID,
		msgs:       []types.Message{},
		done:       make(chan struct{}),
	}
}

// OnMessage registers a callback invoked for every appended message,
// history and live alike. Set it before LoadHistory and Connect.
func (s *Session) OnMessage(fn func(types.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notify = fn
}

// Resolve looks up the room for the participant pair and creates it if
// none exists yet. The lookup-then-create sequence converges on the
// same room id regardless of participant order.
func (s *Session) Resolve(ctx context.Context) (string, error) {
	roomID, err := s.api.GetChatRoom(ctx, s.selfID, s.receiverID)
	if errors.Is(err, api.ErrNoRoom) {
		roomID, err = s.api.CreateChatRoom(ctx, s.selfID, s.receiverID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve room: %w", err)
	}

	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()

	return roomID, nil
}

// RoomId returns the resolved room id, or empty before Resolve.
func (s *Session) RoomId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomID
}

// LoadHistory fetches and applies the room's message history exactly
// once per session; further calls are no-ops. A completion arriving
// after Close is discarded rather than applied.
func (s *Session) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	if s.fetched || s.roomID == "" {
		s.mu.Unlock()
		return nil
	}
	roomID := s.roomID
	s.mu.Unlock()

	history, err := s.api.GetMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.fetched {
		s.mu.Unlock()
		return nil
	}
	s.fetched = true
	// No reordering against live messages: whichever settled first
	// was applied first.
	s.msgs = append(s.msgs, history...)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		for _, msg := range history {
			notify(msg)
		}
	}

	return nil
}

// Connect establishes the live channel and subscribes to the room,
// retrying failed attempts under the reconnect policy. Once connected
// it keeps watching the channel and reconnects if it fails, so the
// session self-heals until Close.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.roomID == "" {
		s.mu.Unlock()
		return fmt.Errorf("connect: room not resolved")
	}
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("connect: session closed")
	}
	s.state = StateConnecting
	s.mu.Unlock()

	operation := func() error {
		select {
		case <-s.done:
			return backoff.Permanent(fmt.Errorf("session closed"))
		default:
		}

		conn, err := s.connectOnce(ctx)
		if err != nil {
			s.log.Println("chat channel connect:", err)
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return backoff.Permanent(fmt.Errorf("session closed"))
		}
		s.conn = conn
		s.state = StateConnected
		s.mu.Unlock()

		go s.watch(ctx, conn)
		return nil
	}

	if err := backoff.Retry(operation, s.policy.backOff(ctx)); err != nil {
		s.mu.Lock()
		s.state = StateUnconnected
		s.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}

	return nil
}

func (s *Session) connectOnce(ctx context.Context) (Channel, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Subscribe("/sub/chat/"+s.RoomId(), s.appendMessage); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// watch waits for the channel to fail and reconnects unless the
// session was closed deliberately.
func (s *Session) watch(ctx context.Context, conn Channel) {
	select {
	case <-s.done:
		return
	case <-ctx.Done():
		return
	case err := <-conn.Err():
		s.log.Println("chat channel failed:", err)
	}

	conn.Close()

	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.Connect(ctx); err != nil {
		s.log.Println("chat channel reconnect:", err)
	}
}

// appendMessage appends a live message in arrival order. The inbound
// chatRoomId is deliberately not checked against the session's room:
// the session holds exactly one subscription, scoped to its own room,
// so cross-talk cannot occur by construction.
func (s *Session) appendMessage(body []byte) {
	var msg types.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Println("decode chat message:", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.msgs = append(s.msgs, msg)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(msg)
	}
}

// Send publishes text to the room. When the channel is not open, the
// trimmed text is empty or the room is unknown, it is a silent no-op:
// no error, nothing written, and the caller keeps its input.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	conn := s.conn
	roomID := s.roomID
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || conn == nil || strings.TrimSpace(text) == "" || roomID == "" {
		return nil
	}

	envelope := types.Message{
		Message:    text,
		SenderId:   s.selfID,
		ReceiverId: s.receiverID,
		ChatRoomId: roomID,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := conn.Send("/pub/chat/"+roomID, body); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

// Messages returns a copy of the in-memory message list: history in
// fetch order followed by live messages in arrival order.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]types.Message, len(s.msgs))
	copy(msgs, s.msgs)
	return msgs
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Close tears the session down: the live channel is closed and any
// late completions are discarded. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.state = StateUnconnected
	s.mu.Unlock()

	close(s.done)
	if conn != nil {
		conn.Close()
	}
}
