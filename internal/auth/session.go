// Package auth holds the explicitly constructed session service that
// supplies the current owner identifier and sign-in/sign-out lifecycle
// events. Sync treats "no authenticated owner" as a hard precondition:
// with no owner, operations silently no-op.
package auth

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verdure-app/verdure/internal/common"
)

// Claims is the access-token claims shape: standard registered claims plus
// the owner's user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// Session tracks the authenticated owner for this process. It is injected
// into the sync engine and the migration reconciler; there is no ambient
// global state.
type Session struct {
	secret []byte

	mu        sync.Mutex
	owner     string
	onSignIn  []func(owner string)
	onSignOut []func()
}

// NewSession creates a session service verifying tokens with the given
// HS256 secret.
func NewSession(secret []byte) *Session {
	return &Session{secret: secret}
}

// SignIn verifies the access token, stores the owner id and notifies the
// sign-in subscribers.
func (s *Session) SignIn(tokenString string) error {
	owner, err := s.ownerFromToken(tokenString)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.owner = owner
	subs := slices.Clone(s.onSignIn)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(owner)
	}
	return nil
}

// SignOut clears the owner and notifies the sign-out subscribers. Signing
// out while already signed out is a no-op.
func (s *Session) SignOut() {
	s.mu.Lock()
	if s.owner == "" {
		s.mu.Unlock()
		return
	}
	s.owner = ""
	subs := slices.Clone(s.onSignOut)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Owner returns the current owner id and whether anyone is signed in.
func (s *Session) Owner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.owner != ""
}

// OnSignIn registers a callback invoked after each successful sign-in.
func (s *Session) OnSignIn(fn func(owner string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignIn = append(s.onSignIn, fn)
}

// OnSignOut registers a callback invoked after each sign-out.
func (s *Session) OnSignOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

func (s *Session) ownerFromToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// GenerateToken mints a signed access token for the given owner. The
// backend normally issues tokens; this is used by tests and local setups.
func GenerateToken(userID string, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
