package panelclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/models"
)

// Session is an authenticated handle to one panel.
type Session interface {
	ListInbounds(ctx context.Context) ([]models.Inbound, error)
	FetchSubscription(ctx context.Context, subID string) (string, error)
	ConnectHost() string
}

// Provider authenticates against a registered server and hands back a
// session. Implementations must surface transport/auth failures as
// errors distinguishable from empty responses.
type Provider interface {
	Authenticate(ctx context.Context, serverID string) (Session, error)
}

// clientSession adapts Client to the Session interface.
type clientSession struct {
	client *Client
}

func (s *clientSession) ListInbounds(ctx context.Context) ([]models.Inbound, error) {
	return s.client.GetInbounds(ctx)
}

func (s *clientSession) FetchSubscription(ctx context.Context, subID string) (string, error) {
	return s.client.FetchSubscription(ctx, subID)
}

func (s *clientSession) ConnectHost() string {
	return s.client.ConnectHost()
}

// CachingProvider builds one Client per configured server and keeps the
// shared session-cookie cache. Clients are created lazily and reused.
type CachingProvider struct {
	configs      map[string]config.ServerConfig
	clients      map[string]*Client
	sessionCache *cache.Cache
	mu           sync.Mutex
	logger       *logrus.Logger
}

// NewCachingProvider creates a provider for the given server configs.
func NewCachingProvider(servers []config.ServerConfig, sessionCache *cache.Cache, logger *logrus.Logger) *CachingProvider {
	configs := make(map[string]config.ServerConfig, len(servers))
	for _, s := range servers {
		configs[s.ID] = s
	}
	return &CachingProvider{
		configs:      configs,
		clients:      make(map[string]*Client),
		sessionCache: sessionCache,
		logger:       logger,
	}
}

// Authenticate returns a logged-in session for the server, reusing the
// cached cookie when still valid.
func (p *CachingProvider) Authenticate(ctx context.Context, serverID string) (Session, error) {
	p.mu.Lock()
	client, ok := p.clients[serverID]
	if !ok {
		cfg, found := p.configs[serverID]
		if !found {
			p.mu.Unlock()
			return nil, fmt.Errorf("no configuration for server %s", serverID)
		}
		client = NewClient(cfg, p.sessionCache, p.logger)
		p.clients[serverID] = client
	}
	p.mu.Unlock()

	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return &clientSession{client: client}, nil
}
