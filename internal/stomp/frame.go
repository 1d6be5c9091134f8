// Package stomp is a minimal STOMP 1.2 client speaking over a
// websocket, just enough protocol to drive the chat service's SockJS
// endpoint: connect handshake, subscriptions, sends and heartbeats.
// One STOMP frame rides in one websocket text message.
package stomp

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

const (
	hdrAcceptVersion = "accept-version"
	hdrHeartBeat     = "heart-beat"
	hdrDestination   = "destination"
	hdrId            = "id"
	hdrSubscription  = "subscription"
	hdrContentType   = "content-type"
	hdrContentLength = "content-length"
	hdrReceipt       = "receipt"
	hdrMessage       = "message"
)

type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

func NewFrame(command string, headers map[string]string, body []byte) *Frame {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Frame{
		Command: command,
		Headers: headers,
		Body:    body,
	}
}

func (f *Frame) Header(key string) string {
	return f.Headers[key]
}

// The CONNECT and CONNECTED frames do not escape header values; every
// other frame does (STOMP 1.2, "Value Encoding").
func (f *Frame) escaped() bool {
	return f.Command != CmdConnect && f.Command != CmdConnected
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}

		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape in header %q", s)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("invalid escape sequence %q in header %q", s[i-1:i+1], s)
		}
	}

	return b.String(), nil
}

// Marshal renders the frame as a NUL-terminated STOMP wire frame. A
// content-length header is added whenever a body is present.
func (f *Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	for key, value := range f.Headers {
		if f.escaped() {
			key, value = escapeHeader(key), escapeHeader(value)
		}
		buf.WriteString(key)
		buf.WriteByte(':')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		fmt.Fprintf(&buf, "%s:%d\n", hdrContentLength, len(f.Body))
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)

	return buf.Bytes()
}

// isHeartbeat reports whether data is a heartbeat rather than a frame:
// a bare end-of-line.
func isHeartbeat(data []byte) bool {
	trimmed := bytes.TrimRight(data, "\r\n")
	return len(trimmed) == 0
}

// Parse decodes a single wire frame. Repeated headers keep the first
// occurrence, as the protocol requires.
func Parse(data []byte) (*Frame, error) {
	data = bytes.TrimSuffix(data, []byte{0})

	head, body, found := bytes.Cut(data, []byte("\n\n"))
	if !found {
		head, body, _ = bytes.Cut(data, []byte("\r\n\r\n"))
	}
	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("frame has no command")
	}

	f := NewFrame(lines[0], nil, body)

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		if f.escaped() {
			var err error
			if key, err = unescapeHeader(key); err != nil {
				return nil, err
			}
			if value, err = unescapeHeader(value); err != nil {
				return nil, err
			}
		}
		if _, ok := f.Headers[key]; !ok {
			f.Headers[key] = value
		}
	}

	return f, nil
}
