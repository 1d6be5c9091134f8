package stomp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// Offered in CONNECT: we can send a heartbeat every 10s and want
	// one from the server every 10s.
	clientHeartbeat = 10 * time.Second
)

// Endpoint converts the service base URL into the websocket URL of the
// SockJS raw-websocket endpoint the STOMP session rides on.
func Endpoint(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return u.JoinPath("stomp", "chat", "websocket").String(), nil
}

// MessageHandler receives the body of every MESSAGE frame delivered on
// a subscription. Handlers run on the read loop goroutine and must not
// block.
type MessageHandler func(body []byte)

type subscription struct {
	id          string
	destination string
	handler     MessageHandler
}

// Conn is an established STOMP session. It is safe for concurrent use.
type Conn struct {
	ws  *websocket.Conn
	log *log.Logger

	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[string]*subscription

	errCh     chan error
	done      chan struct{}
	closeOnce sync.Once

	readTimeout  time.Duration
	sendInterval time.Duration
}

// Dial opens the websocket, performs the CONNECT handshake and starts
// the read and heartbeat loops. The cookie jar carries the session
// token cookie into the handshake request; it may be nil.
func Dial(ctx context.Context, endpoint string, jar http.CookieJar, logger *log.Logger) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: writeWait,
		Jar:              jar,
	}

	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Conn{
		ws:    ws,
		log:   logger,
		subs:  make(map[string]*subscription),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}

	if err := c.connect(endpoint); err != nil {
		ws.Close()
		return nil, err
	}

	go c.readLoop()
	if c.sendInterval > 0 {
		go c.heartbeatLoop()
	}

	return c, nil
}

func (c *Conn) connect(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	hb := strconv.FormatInt(clientHeartbeat.Milliseconds(), 10)
	frame := NewFrame(CmdConnect, map[string]string{
		hdrAcceptVersion: "1.2",
		"host":           u.Host,
		hdrHeartBeat:     hb + "," + hb,
	}, nil)
	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	for {
		c.ws.SetReadDeadline(time.Now().Add(writeWait))
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read CONNECTED: %w", err)
		}
		if isHeartbeat(data) {
			continue
		}

		reply, err := Parse(data)
		if err != nil {
			return fmt.Errorf("parse CONNECTED: %w", err)
		}

		switch reply.Command {
		case CmdConnected:
			c.negotiateHeartbeats(reply.Header(hdrHeartBeat))
			return nil
		case CmdError:
			return fmt.Errorf("broker refused connection: %s", reply.Header(hdrMessage))
		default:
			return fmt.Errorf("unexpected %s frame during handshake", reply.Command)
		}
	}
}

// negotiateHeartbeats applies STOMP 1.2 heartbeat negotiation: each
// direction beats at the larger of what one side can do and the other
// side wants, and zero on either side disables it.
func (c *Conn) negotiateHeartbeats(serverValue string) {
	sx, sy := parseHeartbeat(serverValue)

	if sy > 0 {
		c.sendInterval = max(clientHeartbeat, sy)
	}
	if sx > 0 {
		incoming := max(clientHeartbeat, sx)
		// Allow one missed beat before giving up on the read.
		c.readTimeout = 2 * incoming
	}
}

func parseHeartbeat(value string) (sx, sy time.Duration) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0
	}

	x, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	y, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}

	return time.Duration(x) * time.Millisecond, time.Duration(y) * time.Millisecond
}

// Subscribe opens a subscription on destination and returns its id.
// The handler is registered before the SUBSCRIBE frame is written so a
// fast first message cannot slip past it.
func (c *Conn) Subscribe(destination string, handler MessageHandler) (string, error) {
	sub := &subscription{
		id:          uuid.NewString(),
		destination: destination,
		handler:     handler,
	}

	c.subsMu.Lock()
	c.subs[sub.id] = sub
	c.subsMu.Unlock()

	frame := NewFrame(CmdSubscribe, map[string]string{
		hdrId:          sub.id,
		hdrDestination: destination,
	}, nil)
	if err := c.writeFrame(frame); err != nil {
		c.subsMu.Lock()
		delete(c.subs, sub.id)
		c.subsMu.Unlock()
		return "", fmt.Errorf("subscribe %s: %w", destination, err)
	}

	return sub.id, nil
}

func (c *Conn) Unsubscribe(id string) error {
	c.subsMu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	c.subsMu.Unlock()

	if !ok {
		return fmt.Errorf("no subscription with id %q", id)
	}

	frame := NewFrame(CmdUnsubscribe, map[string]string{hdrId: id}, nil)
	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", id, err)
	}

	return nil
}

// Send publishes a JSON body to destination.
func (c *Conn) Send(destination string, body []byte) error {
	frame := NewFrame(CmdSend, map[string]string{
		hdrDestination: destination,
		hdrContentType: "application/json",
	}, body)
	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("send to %s: %w", destination, err)
	}

	return nil
}

// Err yields the first fatal session error: a broker ERROR frame, a
// failed read or a failed heartbeat. Closing the connection yourself
// never produces one.
func (c *Conn) Err() <-chan error {
	return c.errCh
}

// Close sends DISCONNECT and tears down the websocket. It is safe to
// call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		frame := NewFrame(CmdDisconnect, map[string]string{
			hdrReceipt: uuid.NewString(),
		}, nil)
		if werr := c.writeFrame(frame); werr != nil {
			c.log.Println("send DISCONNECT:", werr)
		}

		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})

	return err
}

func (c *Conn) writeFrame(f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, f.Marshal())
}

func (c *Conn) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *Conn) readLoop() {
	for {
		if c.readTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		} else {
			c.ws.SetReadDeadline(time.Time{})
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fail(fmt.Errorf("read frame: %w", err))
			}
			return
		}

		if isHeartbeat(data) {
			continue
		}

		frame, err := Parse(data)
		if err != nil {
			c.log.Println("drop malformed frame:", err)
			continue
		}

		switch frame.Command {
		case CmdMessage:
			c.dispatch(frame)
		case CmdError:
			c.fail(fmt.Errorf("broker error: %s", frame.Header(hdrMessage)))
			return
		case CmdReceipt:
			// Only DISCONNECT requests receipts; nothing waits on them.
		default:
			c.log.Printf("drop unexpected %s frame", frame.Command)
		}
	}
}

func (c *Conn) dispatch(frame *Frame) {
	c.subsMu.RLock()
	sub := c.subs[frame.Header(hdrSubscription)]
	if sub == nil {
		// Some brokers omit the subscription header; fall back to
		// matching the destination.
		for _, s := range c.subs {
			if s.destination == frame.Header(hdrDestination) {
				sub = s
				break
			}
		}
	}
	c.subsMu.RUnlock()

	if sub == nil {
		c.log.Printf("no subscription for message on %q", frame.Header(hdrDestination))
		return
	}

	sub.handler(frame.Body)
}

func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.TextMessage, []byte("\n"))
			c.writeMu.Unlock()
			if err != nil {
				select {
				case <-c.done:
				default:
					c.fail(fmt.Errorf("write heartbeat: %w", err))
				}
				return
			}
		}
	}
}
