package tokens

import (
	"crypto/subtle"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Verification reasons.
const (
	ReasonOK            = "ok"
	ReasonNotFound      = "not-found"
	ReasonRevoked       = "revoked"
	ReasonExpired       = "expired"
	ReasonInvalidSecret = "invalid-secret"
)

// Verification is the outcome of checking a public-access token.
type Verification struct {
	OK       bool
	Identity string
	Reason   string
}

// Verifier checks a token id/secret pair and resolves the subscriber
// identity it is scoped to.
type Verifier interface {
	Verify(tokenID, secret string) Verification
}

// Token grants public, unauthenticated subscription access for one
// identity.
type Token struct {
	ID        string `yaml:"id"`
	Secret    string `yaml:"secret"`
	Identity  string `yaml:"identity"`
	Revoked   bool   `yaml:"revoked"`
	ExpiresAt int64  `yaml:"expiresAt"` // epoch ms, 0 = never
}

// Store is an in-memory token store seeded from a YAML file.
type Store struct {
	tokens map[string]Token
	mu     sync.RWMutex
	logger *logrus.Logger
}

// NewStore loads tokens from the given YAML file. An empty path yields
// an empty store.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	s := &Store{
		tokens: make(map[string]Token),
		logger: logger,
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Token file %s does not exist, starting with no tokens", path)
			return s, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var parsed struct {
		Tokens []Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	for _, t := range parsed.Tokens {
		s.tokens[t.ID] = t
	}

	logger.Infof("Loaded %d access tokens from %s", len(s.tokens), path)
	return s, nil
}

// Verify checks a token id/secret pair.
func (s *Store) Verify(tokenID, secret string) Verification {
	s.mu.RLock()
	token, ok := s.tokens[tokenID]
	s.mu.RUnlock()

	if !ok {
		return Verification{Reason: ReasonNotFound}
	}
	if token.Revoked {
		return Verification{Reason: ReasonRevoked}
	}
	if token.ExpiresAt != 0 && token.ExpiresAt <= time.Now().UnixMilli() {
		return Verification{Reason: ReasonExpired}
	}
	if subtle.ConstantTimeCompare([]byte(token.Secret), []byte(secret)) != 1 {
		return Verification{Reason: ReasonInvalidSecret}
	}

	return Verification{OK: true, Identity: token.Identity, Reason: ReasonOK}
}

// Issue creates a new token for the identity. A zero ttl means the
// token never expires.
func (s *Store) Issue(identity string, ttl time.Duration) Token {
	token := Token{
		ID:       uuid.NewString(),
		Secret:   uuid.NewString(),
		Identity: identity,
	}
	if ttl > 0 {
		token.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}

	s.mu.Lock()
	s.tokens[token.ID] = token
	s.mu.Unlock()

	s.logger.Infof("Issued access token %s for %s", token.ID, identity)
	return token
}

// Revoke marks a token revoked. Revoking an unknown id is a no-op.
func (s *Store) Revoke(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[tokenID]; ok {
		token.Revoked = true
		s.tokens[tokenID] = token
	}
}
