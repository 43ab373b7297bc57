// ABOUTME: Tests for the session current-user signal and request context helpers
// ABOUTME: Covers sign in/out, state projection and latest-value subscriptions

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *User) *User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for user")
		return nil
	}
}

func TestSession_SignInAndOut(t *testing.T) {
	verifier := newTestVerifier(t)
	session := NewSession(verifier, nil)
	assert.Equal(t, StateUnauthenticated, session.State())
	assert.Nil(t, session.CurrentUser())

	token, err := verifier.Generate("user-1", "Ada", time.Hour)
	require.NoError(t, err)

	user, err := session.SignIn(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, StateAuthenticated, session.State())

	session.SignOut()
	assert.Equal(t, StateUnauthenticated, session.State())
}

func TestSession_SignInRejectsBadToken(t *testing.T) {
	session := NewSession(newTestVerifier(t), nil)

	_, err := session.SignIn("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, StateUnauthenticated, session.State())

	_, err = NewSession(nil, nil).SignIn("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_CurrentUserIsCopy(t *testing.T) {
	session := NewSession(nil, nil)
	session.SetUser(&User{ID: "u"})

	got := session.CurrentUser()
	got.ID = "mutated"
	assert.Equal(t, "u", session.CurrentUser().ID)
}

func TestSession_SubscribeDeliversCurrentThenLatest(t *testing.T) {
	session := NewSession(nil, nil)
	session.SetUser(&User{ID: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := session.Subscribe(ctx)

	assert.Equal(t, "first", receive(t, ch).ID)

	// Several changes without reading: only the last is kept
	session.SetUser(&User{ID: "second"})
	session.SignOut()
	session.SetUser(&User{ID: "third"})
	assert.Equal(t, "third", receive(t, ch).ID)

	session.SignOut()
	assert.Nil(t, receive(t, ch))
}

func TestSession_SubscribeClosesOnCancel(t *testing.T) {
	session := NewSession(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := session.Subscribe(ctx)
	<-ch

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after the subscriber left must not block or panic
	session.SetUser(&User{ID: "later"})
}

func TestAuthenticationState_String(t *testing.T) {
	assert.Equal(t, "AUTHENTICATED", StateAuthenticated.String())
	assert.Equal(t, "UNAUTHENTICATED", StateUnauthenticated.String())
	assert.Equal(t, StateAuthenticated, StateFor(&User{ID: "x"}))
	assert.Equal(t, StateUnauthenticated, StateFor(nil))

	text, err := StateAuthenticated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AUTHENTICATED", string(text))

	var parsed AuthenticationState
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, StateAuthenticated, parsed)
	require.NoError(t, parsed.UnmarshalText([]byte("UNAUTHENTICATED")))
	assert.Equal(t, StateUnauthenticated, parsed)
	assert.Error(t, parsed.UnmarshalText([]byte("maybe")))
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UserFromContext(ctx))

	ctx = WithUser(ctx, &User{ID: "u-1"})
	require.NotNil(t, UserFromContext(ctx))
	assert.Equal(t, "u-1", UserFromContext(ctx).ID)
}
