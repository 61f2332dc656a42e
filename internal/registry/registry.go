package registry

import (
	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/models"
)

// Registry resolves the set of panels an aggregation call may touch.
type Registry interface {
	ListServers() []models.Server
	Resolve(serverID string) (models.Server, bool)
}

// ConfigRegistry is a Registry backed by the static server
// configuration loaded at startup.
type ConfigRegistry struct {
	servers []models.Server
	byID    map[string]models.Server
}

// NewFromConfig builds a registry from the configured servers.
func NewFromConfig(servers []config.ServerConfig) *ConfigRegistry {
	r := &ConfigRegistry{
		servers: make([]models.Server, 0, len(servers)),
		byID:    make(map[string]models.Server, len(servers)),
	}
	for _, s := range servers {
		entry := models.Server{ID: s.ID, Name: s.Name}
		r.servers = append(r.servers, entry)
		r.byID[s.ID] = entry
	}
	return r
}

// ListServers returns every registered server.
func (r *ConfigRegistry) ListServers() []models.Server {
	out := make([]models.Server, len(r.servers))
	copy(out, r.servers)
	return out
}

// Resolve looks up a server by id.
func (r *ConfigRegistry) Resolve(serverID string) (models.Server, bool) {
	s, ok := r.byID[serverID]
	return s, ok
}
