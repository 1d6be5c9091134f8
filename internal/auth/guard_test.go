package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/dkim-dev/gochat-client/internal/session"
	"github.com/dkim-dev/gochat-client/internal/testutil"
	"github.com/dkim-dev/gochat-client/internal/types"
	"github.com/stretchr/testify/assert"
)

type fakeSessionAPI struct {
	validateResults []validateResult
	validateCalls   int
	refreshErr      error
	refreshCalls    int
}

type validateResult struct {
	user types.User
	ok   bool
	err  error
}

func (f *fakeSessionAPI) ValidateSession(_ context.Context) (types.User, bool, error) {
	res := f.validateResults[f.validateCalls]
	f.validateCalls++
	return res.user, res.ok, res.err
}

func (f *fakeSessionAPI) RefreshSession(_ context.Context) error {
	f.refreshCalls++
	return f.refreshErr
}

func TestGuardCheck(t *testing.T) {
	alice := types.User{UserId: "alice", Email: "alice@example.com"}

	tcases := []struct {
		name            string
		api             *fakeSessionAPI
		expectedState   State
		expectedUser    types.User
		expectedOk      bool
		expectedRefresh int
	}{
		{
			name: "valid session on first try",
			api: &fakeSessionAPI{
				validateResults: []validateResult{{user: alice, ok: true}},
			},
			expectedState:   StateAuthenticated,
			expectedUser:    alice,
			expectedOk:      true,
			expectedRefresh: 0,
		},
		{
			name: "empty validation then successful refresh",
			api: &fakeSessionAPI{
				validateResults: []validateResult{
					{ok: false},
					{user: alice, ok: true},
				},
			},
			expectedState:   StateAuthenticated,
			expectedUser:    alice,
			expectedOk:      true,
			expectedRefresh: 1,
		},
		{
			name: "validation error then successful refresh",
			api: &fakeSessionAPI{
				validateResults: []validateResult{
					{err: errors.New("network error")},
					{user: alice, ok: true},
				},
			},
			expectedState:   StateAuthenticated,
			expectedUser:    alice,
			expectedOk:      true,
			expectedRefresh: 1,
		},
		{
			name: "refresh fails",
			api: &fakeSessionAPI{
				validateResults: []validateResult{{ok: false}},
				refreshErr:      errors.New("refresh token expired"),
			},
			expectedState:   StateUnauthenticated,
			expectedOk:      false,
			expectedRefresh: 1,
		},
		{
			name: "refresh succeeds but second validation still fails",
			api: &fakeSessionAPI{
				validateResults: []validateResult{
					{ok: false},
					{ok: false},
				},
			},
			expectedState:   StateUnauthenticated,
			expectedOk:      false,
			expectedRefresh: 1,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := session.NewStore()
			guard := NewGuard(tc.api, session.NewController(store), testutil.TestLogger(t))

			state := guard.Check(context.Background())
			assert.Equal(t, tc.expectedState, state, "expected guard state to match")

			user, ok := store.Current()
			assert.Equal(t, tc.expectedOk, ok, "expected store authentication to match")
			assert.Equal(t, tc.expectedUser, user, "expected stored user to match")

			assert.Equal(t, tc.expectedRefresh, tc.api.refreshCalls, "expected exactly one refresh attempt at most")
		})
	}
}

func TestGuardCheckClearsPreviousSession(t *testing.T) {
	store := session.NewStore()
	ctrl := session.NewController(store)
	ctrl.Set(types.User{UserId: "alice"})

	api := &fakeSessionAPI{
		validateResults: []validateResult{{ok: false}},
		refreshErr:      errors.New("refresh token expired"),
	}
	guard := NewGuard(api, ctrl, testutil.TestLogger(t))

	state := guard.Check(context.Background())
	assert.Equal(t, StateUnauthenticated, state, "expected unauthenticated state")

	_, ok := store.Current()
	assert.False(t, ok, "expected stale session to be cleared")
}
