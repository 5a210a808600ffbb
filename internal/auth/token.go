package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token format: ds_{prefix}_{secret}
// Example: ds_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefixLen = 6  // hex encoded 3 bytes, stored in clear for lookup
	TokenSecretLen = 32 // hex encoded 16 bytes
)

var (
	// ErrInvalidTokenFormat indicates the token does not match ds_{prefix}_{secret}.
	ErrInvalidTokenFormat = errors.New("invalid session token format")

	tokenFormatRegex = regexp.MustCompile(`^ds_([a-f0-9]{6})_([a-f0-9]{32})$`)
)

// GeneratedToken contains the parts of a newly issued session token.
type GeneratedToken struct {
	Plaintext string // Full token, shown once
	Hash      string // Argon2id hash for storage
	Prefix    string
}

// GenerateToken creates a new session token and its storage hash.
func GenerateToken() (*GeneratedToken, error) {
	prefixBytes := make([]byte, TokenPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)

	secretBytes := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("ds_%s_%s", prefix, hex.EncodeToString(secretBytes))

	hash, err := HashSecret(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    prefix,
	}, nil
}

// ParsedToken contains the parsed parts of a session token.
type ParsedToken struct {
	Prefix string
	Secret string
}

// ParseToken extracts the components from a plaintext token.
func ParseToken(token string) (*ParsedToken, error) {
	matches := tokenFormatRegex.FindStringSubmatch(token)
	if matches == nil {
		return nil, ErrInvalidTokenFormat
	}
	return &ParsedToken{Prefix: matches[1], Secret: matches[2]}, nil
}
