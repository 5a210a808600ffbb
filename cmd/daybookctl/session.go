package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/auth"
	"github.com/daybook/daybook/internal/model"
	"github.com/daybook/daybook/internal/repository"
)

const defaultSessionTTL = 30 * 24 * time.Hour

type sessionStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateSession(ctx context.Context, s *model.Session) error
	RevokeSession(ctx context.Context, id string) error
}

type sessionCache interface {
	DeleteSessionIdentity(ctx context.Context, sessionID string) error
}

type issuedSession struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Issue and revoke session tokens",
	}

	var (
		userID string
		ttl    time.Duration
		asJSON bool
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session token for a user. The token is printed once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			issued, err := issueSession(ctx, a.repo, userID, ttl, time.Now().UTC())
			if err != nil {
				return err
			}
			return printIssued(a.out, issued, asJSON)
		},
	}
	issue.Flags().StringVar(&userID, "user-id", "", "owner of the session (required)")
	issue.Flags().DurationVar(&ttl, "ttl", defaultSessionTTL, "session lifetime")
	issue.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of the bare token")
	_ = issue.MarkFlagRequired("user-id")

	var sessionID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a session and drop its cached identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := revokeSession(ctx, a.repo, a.cache, sessionID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "revoked %s\n", sessionID)
			return nil
		},
	}
	revoke.Flags().StringVar(&sessionID, "id", "", "session id (required)")
	_ = revoke.MarkFlagRequired("id")

	cmd.AddCommand(issue, revoke)
	return cmd
}

func issueSession(ctx context.Context, store sessionStore, userID string, ttl time.Duration, now time.Time) (*issuedSession, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	if _, err := store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("user %s does not exist", userID)
		}
		return nil, err
	}

	generated, err := auth.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	session := &model.Session{
		ID:          ulid.Make().String(),
		UserID:      userID,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &issuedSession{
		SessionID: session.ID,
		UserID:    userID,
		Token:     generated.Plaintext,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// revokeSession marks the session revoked, then evicts cached identities so
// the token stops working before the cache TTL runs out.
func revokeSession(ctx context.Context, store sessionStore, c sessionCache, sessionID string) error {
	if err := store.RevokeSession(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found or already revoked", sessionID)
		}
		return err
	}
	if err := c.DeleteSessionIdentity(ctx, sessionID); err != nil {
		return fmt.Errorf("session revoked but cache eviction failed: %w", err)
	}
	return nil
}

func printIssued(out io.Writer, issued *issuedSession, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(out, issued.Token)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(issued)
}
