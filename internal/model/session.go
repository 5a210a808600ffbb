// Package model defines domain entities for the application.
package model

import "time"

// Session is an issued login session. Only the hash of its token is stored.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	TokenHash   string     `json:"-"` // Never serialize
	TokenPrefix string     `json:"tokenPrefix"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsRevoked returns true if the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired returns true once the expiry time has passed.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActive returns true if the session can authenticate requests.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsRevoked() && !s.IsExpired(now)
}

// Identity is the authenticated caller on whose behalf a request executes.
// It is injected into the request context by the auth middleware.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	// ExpiresAt bounds how long a cached identity stays valid.
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsZero reports whether no caller is set.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
