// Package models holds the client-side mirrors of server-owned records.
// None of them is durable; they are refreshed from the backend on demand.
package models

import "time"

// Session is the authenticated identity issued by the identity provider.
// UserID and Email are taken from the access token claims.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) <= d
}

// Clone returns a copy safe to hand to readers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// AuthEventType names a change in the session lifecycle.
type AuthEventType string

const (
	EventInitialSession   AuthEventType = "INITIAL_SESSION"
	EventSignedIn         AuthEventType = "SIGNED_IN"
	EventSignedOut        AuthEventType = "SIGNED_OUT"
	EventUserUpdated      AuthEventType = "USER_UPDATED"
	EventPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
	EventTokenRefreshed   AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to auth state listeners. Session is nil for
// SIGNED_OUT and for an INITIAL_SESSION without stored credentials.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
