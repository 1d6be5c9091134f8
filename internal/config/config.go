package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	defaultReconnectInitial = 5 * time.Second
	defaultReconnectMax     = 2 * time.Minute
)

type Config struct {
	// BaseURL is the single origin serving both the REST API and the
	// STOMP endpoint.
	BaseURL        string
	RequestTimeout time.Duration

	// Reconnect policy for the chat channel. ReconnectMaxRetries of
	// zero retries forever.
	ReconnectInitial    time.Duration
	ReconnectMax        time.Duration
	ReconnectMaxRetries uint64
}

func NewConfig(baseURL string) (*Config, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL has no host")
	}

	return &Config{
		BaseURL:          baseURL,
		RequestTimeout:   defaultRequestTimeout,
		ReconnectInitial: defaultReconnectInitial,
		ReconnectMax:     defaultReconnectMax,
	}, nil
}
