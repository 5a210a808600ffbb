package model

import (
	"testing"
	"time"
)

func TestSession_IsActive(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	testCases := []struct {
		name    string
		session Session
		want    bool
	}{
		{
			name:    "active",
			session: Session{ExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "expired",
			session: Session{ExpiresAt: now.Add(-time.Second)},
			want:    false,
		},
		{
			name:    "expires exactly now",
			session: Session{ExpiresAt: now},
			want:    false,
		},
		{
			name:    "revoked",
			session: Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt},
			want:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.session.IsActive(now); got != tc.want {
				t.Errorf("IsActive() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIdentity_IsZero(t *testing.T) {
	if !(Identity{}).IsZero() {
		t.Error("empty identity should be zero")
	}
	if (Identity{UserID: "u"}).IsZero() {
		t.Error("identity with user should not be zero")
	}
}
