package policy

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"xui-sub-hub/internal/models"
)

// Store resolves the access policy for a subscriber identity.
type Store interface {
	GetPolicy(identity string) (models.AccessPolicy, error)
}

// FileStore is a Store backed by a YAML file mapping identities to
// policies. Identities without an entry get the default full-access
// policy.
type FileStore struct {
	policies map[string]models.AccessPolicy
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFileStore loads policies from the given YAML file. A missing path
// yields an empty store where every identity gets the default policy.
func NewFileStore(path string, logger *logrus.Logger) (*FileStore, error) {
	s := &FileStore{
		policies: make(map[string]models.AccessPolicy),
		logger:   logger,
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Policy file %s does not exist, using default policies", path)
			return s, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var raw map[string]models.AccessPolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	for identity, p := range raw {
		s.policies[strings.ToLower(identity)] = p.Normalize()
	}

	logger.Infof("Loaded %d access policies from %s", len(s.policies), path)
	return s, nil
}

// GetPolicy returns the policy bound to the identity, or the default
// full-access policy when none is configured.
func (s *FileStore) GetPolicy(identity string) (models.AccessPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.policies[strings.ToLower(strings.TrimSpace(identity))]; ok {
		return p, nil
	}
	return models.DefaultPolicy(), nil
}

// SetPolicy replaces the policy for one identity. Used by tests and by
// deployments that manage policies programmatically.
func (s *FileStore) SetPolicy(identity string, p models.AccessPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[strings.ToLower(strings.TrimSpace(identity))] = p.Normalize()
}
