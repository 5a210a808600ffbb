package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/daybook/daybook/internal/model"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if !strings.HasPrefix(tok.Plaintext, "ds_"+tok.Prefix+"_") {
		t.Errorf("token should start with ds_<prefix>_, got: %s", tok.Plaintext)
	}
	if len(tok.Prefix) != TokenPrefixLen {
		t.Errorf("prefix should be %d chars, got %d", TokenPrefixLen, len(tok.Prefix))
	}

	parsed, err := ParseToken(tok.Plaintext)
	if err != nil {
		t.Fatalf("ParseToken failed on generated token: %v", err)
	}
	if parsed.Prefix != tok.Prefix || len(parsed.Secret) != TokenSecretLen {
		t.Errorf("unexpected parse result: %+v", parsed)
	}

	match, err := VerifySecret(tok.Plaintext, tok.Hash)
	if err != nil || !match {
		t.Errorf("generated hash should verify: %v %v", match, err)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []string{
		"",
		"ds_abc",
		"pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",
		"ds_ABC123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",
		"ds_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1",
		"ds_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b00",
	}

	for _, tc := range testCases {
		if _, err := ParseToken(tc); !errors.Is(err, ErrInvalidTokenFormat) {
			t.Errorf("ParseToken(%q) error = %v, want ErrInvalidTokenFormat", tc, err)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("empty context should carry no identity")
	}
	if UserIDFromContext(ctx) != "" {
		t.Error("empty context should have no user id")
	}

	ctx = ContextWithIdentity(ctx, model.Identity{UserID: "user-1", SessionID: "s-1"})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID != "user-1" || id.SessionID != "s-1" {
		t.Errorf("unexpected identity: %+v ok=%v", id, ok)
	}
}
