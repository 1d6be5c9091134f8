package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dkim-dev/gochat-client/internal/api"
	"github.com/dkim-dev/gochat-client/internal/app"
	"github.com/dkim-dev/gochat-client/internal/auth"
	"github.com/dkim-dev/gochat-client/internal/config"
	"github.com/dkim-dev/gochat-client/internal/session"
)

const baseURLEnv = "GOCHAT_BASE_URL"

var (
	baseURL        string
	requestTimeout time.Duration
	maxReconnects  uint64
)

func main() {
	logger := log.New(os.Stderr, "[gochat-client] ", log.LstdFlags)

	// Flags take precedence over the environment, the environment over
	// .env.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	flag.StringVar(&baseURL, "base-url", os.Getenv(baseURLEnv), "base URL of the gochat service")
	flag.DurationVar(&requestTimeout, "request-timeout", 10*time.Second, "timeout for REST requests")
	flag.Uint64Var(&maxReconnects, "max-reconnects", 0, "chat channel reconnect attempts, 0 retries forever")
	flag.Parse()

	cfg, err := config.NewConfig(baseURL)
	if err != nil {
		logger.Fatal("config: ", err)
	}
	cfg.RequestTimeout = requestTimeout
	cfg.ReconnectMaxRetries = maxReconnects

	apiClient, err := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, logger)
	if err != nil {
		logger.Fatal("api client: ", err)
	}

	store := session.NewStore()
	guard := auth.NewGuard(apiClient, session.NewController(store), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, apiClient, store, guard, logger, os.Stdin, os.Stdout)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("run: ", err)
	}

	logger.Println("goodbye")
}
