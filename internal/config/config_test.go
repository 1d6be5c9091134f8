package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name    string
		baseURL string
		err     bool
	}{
		{
			name:    "valid http base URL",
			baseURL: "http://localhost:8080",
			err:     false,
		},
		{
			name:    "valid https base URL",
			baseURL: "https://chat.example.com",
			err:     false,
		},
		{
			name:    "empty base URL",
			baseURL: "",
			err:     true,
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://localhost:8080",
			err:     true,
		},
		{
			name:    "missing host",
			baseURL: "http://",
			err:     true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.baseURL)
			if tc.err {
				assert.Error(t, err, "expected error for base URL %q", tc.baseURL)
				return
			}
			assert.NoError(t, err, "expected no error for base URL %q", tc.baseURL)

			assert.Equal(t, tc.baseURL, cfg.BaseURL, "expected base URL to match")
			assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout, "expected default request timeout")
			assert.Equal(t, defaultReconnectInitial, cfg.ReconnectInitial, "expected default reconnect interval")
			assert.Equal(t, defaultReconnectMax, cfg.ReconnectMax, "expected default reconnect cap")
		})
	}
}
