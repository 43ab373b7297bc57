// ABOUTME: Current-user signal shared by controllers and the HTTP surface
// ABOUTME: SignIn verifies a token, SignOut clears it, subscribers see the latest user

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// AuthenticationState is the two-valued projection of the current user.
type AuthenticationState int

const (
	StateUnauthenticated AuthenticationState = iota
	StateAuthenticated
)

func (s AuthenticationState) String() string {
	if s == StateAuthenticated {
		return "AUTHENTICATED"
	}
	return "UNAUTHENTICATED"
}

// MarshalText renders the state for JSON responses.
func (s AuthenticationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *AuthenticationState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "AUTHENTICATED":
		*s = StateAuthenticated
	case "UNAUTHENTICATED":
		*s = StateUnauthenticated
	default:
		return fmt.Errorf("unknown authentication state %q", text)
	}
	return nil
}

// StateFor projects a possibly-nil user onto an AuthenticationState.
func StateFor(user *User) AuthenticationState {
	if user == nil {
		return StateUnauthenticated
	}
	return StateAuthenticated
}

// UserSource is the read side of the current-user signal.
type UserSource interface {
	CurrentUser() *User
	Subscribe(ctx context.Context) <-chan *User
	SignOut()
}

// Session holds the signed-in user.
type Session struct {
	mu          sync.Mutex
	verifier    TokenVerifier
	user        *User
	subscribers map[string]chan *User
	logger      *slog.Logger
}

// NewSession creates an empty session. verifier may be nil when tokens are
// not checked; SignIn then fails. Pass nil logger for default.
func NewSession(verifier TokenVerifier, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		verifier:    verifier,
		subscribers: make(map[string]chan *User),
		logger:      logger.With("component", "session"),
	}
}

// SignIn verifies the token and makes its user current.
func (s *Session) SignIn(token string) (*User, error) {
	if s.verifier == nil {
		return nil, ErrInvalidToken
	}
	user, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	s.set(user)
	s.logger.Info("user signed in", "user_id", user.ID)
	return copyUser(user), nil
}

// SetUser makes user current without a token. A nil user signs out.
func (s *Session) SetUser(user *User) {
	s.set(user)
}

// SignOut clears the current user.
func (s *Session) SignOut() {
	s.set(nil)
	s.logger.Info("user signed out")
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

// State returns the current authentication projection.
func (s *Session) State() AuthenticationState {
	return StateFor(s.CurrentUser())
}

// Subscribe returns a channel that receives the current user immediately and
// again after every change. A nil value means signed out. Slow readers only
// ever see the latest value. The channel is closed when ctx is cancelled.
func (s *Session) Subscribe(ctx context.Context) <-chan *User {
	subID := uuid.New().String()
	ch := make(chan *User, 1)

	s.mu.Lock()
	s.subscribers[subID] = ch
	ch <- copyUser(s.user)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[subID]; ok {
			delete(s.subscribers, subID)
			close(ch)
		}
	}()

	return ch
}

func (s *Session) set(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = copyUser(user)
	for _, ch := range s.subscribers {
		// Replace any unread value so the reader sees the latest one
		select {
		case <-ch:
		default:
		}
		ch <- copyUser(s.user)
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
