// Package app is the interactive terminal client: a small navigation
// loop over the service's routing surface, with line-oriented
// views for login, the user directory and chat sessions.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/dkim-dev/gochat-client/internal/api"
	"github.com/dkim-dev/gochat-client/internal/auth"
	"github.com/dkim-dev/gochat-client/internal/chat"
	"github.com/dkim-dev/gochat-client/internal/config"
	"github.com/dkim-dev/gochat-client/internal/directory"
	"github.com/dkim-dev/gochat-client/internal/session"
	"github.com/dkim-dev/gochat-client/internal/stomp"
	"github.com/dkim-dev/gochat-client/internal/types"
)

// routeQuit is an internal sentinel, not a navigable path.
const routeQuit = ""

type App struct {
	cfg   *config.Config
	api   *api.Client
	store session.Reader
	guard *auth.Guard
	log   *log.Logger
	in    *bufio.Scanner
	out   io.Writer
}

func New(cfg *config.Config, apiClient *api.Client, store session.Reader, guard *auth.Guard, logger *log.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		cfg:   cfg,
		api:   apiClient,
		store: store,
		guard: guard,
		log:   logger,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// readLine returns the next input line, or false on EOF.
func (a *App) readLine(prompt string) (string, bool) {
	a.printf("%s", prompt)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

// Run drives the navigation loop until the user quits or the context
// is cancelled. Every iteration renders the view for the current path
// and gets back the next one.
func (a *App) Run(ctx context.Context) error {
	path := "/"
	for path != routeQuit {
		if err := ctx.Err(); err != nil {
			return err
		}

		route := ParseRoute(path)
		switch route.Name {
		case RouteLogin:
			path = a.loginView(ctx)
		case RouteMain:
			path = a.protected(ctx, a.mainView)
		case RouteChat:
			path = a.protected(ctx, func(ctx context.Context, user types.User) string {
				return a.chatView(ctx, user, route.ReceiverId)
			})
		default:
			a.printf("404: no such page %q\n", path)
			path = "/"
		}
	}

	return nil
}

// protected runs the auth guard before rendering a view, exactly like
// a browser's private route: a loading placeholder while pending, a
// redirect to the entry view when unauthenticated.
func (a *App) protected(ctx context.Context, view func(context.Context, types.User) string) string {
	a.printf("Loading...\n")

	if state := a.guard.Check(ctx); state != auth.StateAuthenticated {
		a.printf("You are not signed in.\n")
		return "/"
	}

	user, _ := a.store.Current()
	return view(ctx, user)
}

func (a *App) loginView(ctx context.Context) string {
	a.printf("\n-- gochat --\n")
	choice, ok := a.readLine("[l]ogin, [s]ignup or [q]uit: ")
	if !ok {
		return routeQuit
	}

	switch choice {
	case "l", "login":
		return a.login(ctx)
	case "s", "signup":
		a.signup(ctx)
		return "/"
	case "q", "quit":
		return routeQuit
	default:
		return "/"
	}
}

func (a *App) login(ctx context.Context) string {
	userID, ok := a.readLine("user id: ")
	if !ok {
		return routeQuit
	}
	password, ok := a.readLine("password: ")
	if !ok {
		return routeQuit
	}

	err := a.api.Login(ctx, types.LoginRequest{UserId: userID, Password: password})
	if err != nil {
		a.log.Println("login:", err)
		// One generic message: the server does not say whether the
		// user was unknown or the password wrong.
		a.printf("Login failed: invalid user id or password.\n")
		return "/"
	}

	a.printf("Login successful!\n")
	return "/main"
}

func (a *App) signup(ctx context.Context) {
	req := types.SignupRequest{}
	fields := []struct {
		prompt string
		value  *string
	}{
		{"user id: ", &req.UserId},
		{"password: ", &req.UserPassword},
		{"name: ", &req.UserName},
		{"email: ", &req.Email},
	}
	for _, field := range fields {
		value, ok := a.readLine(field.prompt)
		if !ok {
			return
		}
		*field.value = value
	}

	if err := a.api.CreateAccount(ctx, req); err != nil {
		a.log.Println("signup:", err)

		// Surface the server's own message when it rejected the request.
		var apiErr *api.ApiError
		if errors.As(err, &apiErr) {
			a.printf("Signup failed: %s\n", apiErr.Message)
		} else {
			a.printf("Signup failed.\n")
		}
		return
	}

	a.printf("Signup successful!\n")
}

// dialChannel opens a STOMP session sharing the REST client's cookie
// jar, so the websocket handshake carries the session token.
func (a *App) dialChannel(ctx context.Context) (*stomp.Conn, error) {
	endpoint, err := stomp.Endpoint(a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	return stomp.Dial(ctx, endpoint, a.api.Jar(), a.log)
}

func (a *App) mainView(ctx context.Context, user types.User) string {
	a.printf("\n-- directory --\nsigned in as %s (%s)\n", user.UserId, user.Email)

	// The directory still renders without presence when the channel
	// cannot be opened; there is no reconnect for this subscription.
	var conn *stomp.Conn
	conn, err := a.dialChannel(ctx)
	if err != nil {
		a.log.Println("presence connection:", err)
		conn = nil
	} else {
		defer conn.Close()
	}

	var sub directory.Subscriber
	if conn != nil {
		sub = conn
	}

	dir := directory.NewDirectory(a.api, sub, a.log)
	if err := dir.Start(ctx); err != nil {
		a.log.Println("directory start:", err)
	} else {
		defer dir.Stop()
	}

	for {
		a.renderDirectory(dir, user.UserId)

		input, ok := a.readLine("user id to chat, enter to refresh, [q]uit: ")
		if !ok || input == "q" || input == "quit" {
			return routeQuit
		}
		if input == "" {
			continue
		}
		if input == user.UserId {
			a.printf("that's you.\n")
			continue
		}

		return ChatPath(input)
	}
}

func (a *App) renderDirectory(dir *directory.Directory, selfID string) {
	users := dir.Users()
	a.printf("\nregistered users (%d):\n", len(users))
	for _, u := range users {
		a.printf("  %s\n", u.UserId)
	}

	entries := dir.Entries(selfID)
	a.printf("online now (%d):\n", len(entries))
	for _, entry := range entries {
		if entry.Self {
			a.printf("  %s (you)\n", entry.UserId)
		} else {
			a.printf("  %s -> %s\n", entry.UserId, ChatPath(entry.UserId))
		}
	}
}

func (a *App) chatView(ctx context.Context, user types.User, receiverID string) string {
	a.printf("\n-- chat with %s --\n", receiverID)

	policy := chat.ReconnectPolicy{
		Initial:    a.cfg.ReconnectInitial,
		Max:        a.cfg.ReconnectMax,
		MaxRetries: a.cfg.ReconnectMaxRetries,
	}
	dial := func(ctx context.Context) (chat.Channel, error) {
		conn, err := a.dialChannel(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	sess := chat.NewSession(a.api, dial, user.UserId, receiverID, policy, a.log)
	defer sess.Close()

	if _, err := sess.Resolve(ctx); err != nil {
		a.log.Println("resolve chat room:", err)
		a.printf("could not open a chat with %s\n", receiverID)
		return "/main"
	}

	sess.OnMessage(func(msg types.Message) {
		a.printf("[%s] %s (from: %s)\n", FormatTimestamp(msg.Timestamp), msg.Message, msg.SenderId)
	})

	if err := sess.LoadHistory(ctx); err != nil {
		a.log.Println("load history:", err)
	}

	// Connect blocks while the reconnect policy is retrying, so it
	// runs aside the input loop.
	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := sess.Connect(connectCtx); err != nil && connectCtx.Err() == nil {
			a.log.Println("chat connect:", err)
		}
	}()

	for {
		line, ok := a.readLine("> ")
		if !ok {
			return routeQuit
		}
		if line == "/quit" {
			return "/main"
		}

		if err := sess.Send(line); err != nil {
			a.log.Println("send message:", err)
		}
	}
}
