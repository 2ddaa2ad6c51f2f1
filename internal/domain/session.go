package domain

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// Session identifies the user an operation acts for and the clock it reads.
type Session struct {
	UserID string
	Clock  func() time.Time
}

// NewSession returns a session using the wall clock.
func NewSession(userID string) Session {
	return Session{UserID: userID, Clock: time.Now}
}

// Now returns the current time of the session clock.
func (s Session) Now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// Today returns the current calendar day.
func (s Session) Today() civil.Date {
	return civil.DateOf(s.Now())
}

type sessionKey struct{}

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored in ctx.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
