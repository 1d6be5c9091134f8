// Package directory renders the protected landing view's data: the
// full registered-user list fetched once over REST, and the presence
// list kept live by the /sub/users subscription.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/dkim-dev/gochat-client/internal/stomp"
	"github.com/dkim-dev/gochat-client/internal/types"
)

const presenceDestination = "/sub/users"

// UserLister is the slice of the REST client the directory needs.
type UserLister interface {
	ListUsers(ctx context.Context) ([]types.User, error)
}

// Subscriber is the slice of the STOMP connection the directory needs.
type Subscriber interface {
	Subscribe(destination string, handler stomp.MessageHandler) (string, error)
	Unsubscribe(id string) error
}

// Entry is one row of the presence list. Self entries render as plain
// labels; everything else links to a chat session.
type Entry struct {
	UserId string
	Self   bool
}

type Directory struct {
	api  UserLister
	conn Subscriber
	log  *log.Logger

	mu      sync.RWMutex
	users   []types.User
	present types.PresenceSnapshot
	subID   string
}

func NewDirectory(api UserLister, conn Subscriber, logger *log.Logger) *Directory {
	return &Directory{
		api:   api,
		conn:  conn,
		log:   logger,
		users: []types.User{},
	}
}

// Start fetches the registered-user list once and opens the presence
// subscription. A failed fetch is logged and leaves the list empty;
// there is no refresh-on-demand. With a nil Subscriber the directory
// renders without presence.
func (d *Directory) Start(ctx context.Context) error {
	users, err := d.api.ListUsers(ctx)
	if err != nil {
		d.log.Println("fetch user list:", err)
		users = []types.User{}
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	subID, err := d.conn.Subscribe(presenceDestination, d.applySnapshot)
	if err != nil {
		return fmt.Errorf("subscribe presence: %w", err)
	}
	d.subID = subID

	return nil
}

// applySnapshot replaces the presence list wholesale. Every push is the
// complete set of connected user ids, never a delta, so merging would
// be wrong.
func (d *Directory) applySnapshot(body []byte) {
	var snapshot types.PresenceSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		d.log.Println("decode presence snapshot:", err)
		return
	}

	d.mu.Lock()
	d.present = snapshot
	d.mu.Unlock()
}

// Users returns the registered-user list from the one-shot fetch.
func (d *Directory) Users() []types.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]types.User, len(d.users))
	copy(users, d.users)
	return users
}

// Entries returns the current presence list in push order, marking the
// entry belonging to selfID.
func (d *Directory) Entries(selfID string) []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make([]Entry, 0, len(d.present))
	for _, id := range d.present {
		entries = append(entries, Entry{
			UserId: id,
			Self:   id == selfID,
		})
	}

	return entries
}

// Stop closes the presence subscription.
func (d *Directory) Stop() {
	if d.subID == "" {
		return
	}

	if err := d.conn.Unsubscribe(d.subID); err != nil {
		d.log.Println("unsubscribe presence:", err)
	}
	d.subID = ""
}
