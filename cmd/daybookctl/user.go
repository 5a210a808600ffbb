package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/model"
	"github.com/daybook/daybook/internal/repository"
)

var validate = validator.New()

type userStore interface {
	EnsureUser(ctx context.Context, user *model.User) (*model.User, bool, error)
}

type userReader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CountMomentsByOwner(ctx context.Context, ownerID string) (int64, error)
	ListSessionsByUserID(ctx context.Context, userID string) ([]*model.Session, error)
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user, or print the existing one with the same email",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()
			return createUser(ctx, a.repo, a.out, email, time.Now().UTC())
		},
	}
	create.Flags().StringVar(&email, "email", "", "user email (required)")
	_ = create.MarkFlagRequired("email")

	var userID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a user with its moment count and sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()
			return showUser(ctx, a.repo, a.out, userID, time.Now().UTC())
		},
	}
	show.Flags().StringVar(&userID, "id", "", "user id (required)")
	_ = show.MarkFlagRequired("id")

	cmd.AddCommand(create, show)
	return cmd
}

func createUser(ctx context.Context, users userStore, out io.Writer, email string, now time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("invalid email: %q", email)
	}

	user, created, err := users.EnsureUser(ctx, &model.User{
		ID:        ulid.Make().String(),
		Email:     email,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	status := "existing"
	if created {
		status = "created"
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", user.ID, user.Email, status)
	return nil
}

// showUser prints the user line, then one line per session:
// id, token prefix, state and expiry. Token hashes are never printed.
func showUser(ctx context.Context, users userReader, out io.Writer, userID string, now time.Time) error {
	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("user %s not found", userID)
		}
		return err
	}
	count, err := users.CountMomentsByOwner(ctx, user.ID)
	if err != nil {
		return err
	}
	sessions, err := users.ListSessionsByUserID(ctx, user.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\t%s\tmoments=%d\tsessions=%d\n", user.ID, user.Email, count, len(sessions))
	for _, s := range sessions {
		state := "active"
		switch {
		case s.IsRevoked():
			state = "revoked"
		case s.IsExpired(now):
			state = "expired"
		}
		fmt.Fprintf(out, "  %s\t%s\t%s\t%s\n", s.ID, s.TokenPrefix, state, s.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
