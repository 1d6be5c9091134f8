package stomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMarshalParseRoundTrip(t *testing.T) {
	tcases := []struct {
		name  string
		frame *Frame
	}{
		{
			name: "subscribe frame without body",
			frame: NewFrame(CmdSubscribe, map[string]string{
				hdrId:          "sub-0",
				hdrDestination: "/sub/chat/r1",
			}, nil),
		},
		{
			name: "send frame with json body",
			frame: NewFrame(CmdSend, map[string]string{
				hdrDestination: "/pub/chat/r1",
				hdrContentType: "application/json",
			}, []byte(`{"message":"hi"}`)),
		},
		{
			name: "header values requiring escaping",
			frame: NewFrame(CmdMessage, map[string]string{
				hdrSubscription: "sub-0",
				hdrMessage:      "colon: and\nnewline",
			}, []byte("body")),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.frame.Marshal())
			require.NoError(t, err, "expected marshaled frame to parse")

			assert.Equal(t, tc.frame.Command, parsed.Command, "expected command to survive round trip")
			for key, value := range tc.frame.Headers {
				assert.Equal(t, value, parsed.Header(key), "expected header %q to survive round trip", key)
			}
			assert.Equal(t, tc.frame.Body, parsed.Body, "expected body to survive round trip")
		})
	}
}

func TestFrameMarshalAddsContentLength(t *testing.T) {
	frame := NewFrame(CmdSend, map[string]string{hdrDestination: "/pub/chat/r1"}, []byte("hello"))

	parsed, err := Parse(frame.Marshal())
	require.NoError(t, err)
	assert.Equal(t, "5", parsed.Header(hdrContentLength), "expected content-length of body")
}

func TestParseKeepsFirstRepeatedHeader(t *testing.T) {
	raw := "MESSAGE\nfoo:first\nfoo:second\n\nbody\x00"

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "first", parsed.Header("foo"), "expected first occurrence of repeated header to win")
}

func TestParseConnectedSkipsUnescaping(t *testing.T) {
	// CONNECTED headers are not escaped, so a backslash is literal.
	raw := "CONNECTED\nversion:1.2\nserver:some\\server\n\n\x00"

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, `some\server`, parsed.Header("server"), "expected literal backslash in CONNECTED header")
}

func TestParseErrors(t *testing.T) {
	tcases := []struct {
		name string
		raw  string
	}{
		{
			name: "missing command",
			raw:  "\n\n\x00",
		},
		{
			name: "header line without colon",
			raw:  "MESSAGE\nnocolon\n\n\x00",
		},
		{
			name: "invalid escape sequence",
			raw:  "MESSAGE\nfoo:bad\\escape\n\n\x00",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			assert.Error(t, err, "expected parse error for %q", tc.raw)
		})
	}
}

func TestIsHeartbeat(t *testing.T) {
	assert.True(t, isHeartbeat([]byte("\n")), "expected bare LF to be a heartbeat")
	assert.True(t, isHeartbeat([]byte("\r\n")), "expected bare CRLF to be a heartbeat")
	assert.False(t, isHeartbeat([]byte("MESSAGE\n\n\x00")), "expected a frame not to be a heartbeat")
}

func TestEndpoint(t *testing.T) {
	tcases := []struct {
		name     string
		baseURL  string
		expected string
		err      bool
	}{
		{
			name:     "http base",
			baseURL:  "http://localhost:8080",
			expected: "ws://localhost:8080/stomp/chat/websocket",
		},
		{
			name:     "https base",
			baseURL:  "https://chat.example.com",
			expected: "wss://chat.example.com/stomp/chat/websocket",
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://localhost",
			err:     true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint, err := Endpoint(tc.baseURL)
			if tc.err {
				assert.Error(t, err, "expected error for base URL %q", tc.baseURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, endpoint, "expected endpoint URL to match")
		})
	}
}
