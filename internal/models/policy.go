package models

import "strings"

// ScopeMode governs whether a policy restricts servers or protocols.
type ScopeMode string

const (
	ScopeAll      ScopeMode = "all"
	ScopeSelected ScopeMode = "selected"
	ScopeNone     ScopeMode = "none"
)

// AccessPolicy is a subscriber's access policy, owned by an external
// policy store and read-only here.
type AccessPolicy struct {
	ServerScopeMode   ScopeMode `json:"serverScopeMode" yaml:"serverScopeMode"`
	AllowedServerIDs  []string  `json:"allowedServerIds" yaml:"allowedServerIds"`
	ProtocolScopeMode ScopeMode `json:"protocolScopeMode" yaml:"protocolScopeMode"`
	AllowedProtocols  []string  `json:"allowedProtocols" yaml:"allowedProtocols"`
}

// DefaultPolicy grants full access.
func DefaultPolicy() AccessPolicy {
	return AccessPolicy{
		ServerScopeMode:   ScopeAll,
		ProtocolScopeMode: ScopeAll,
	}
}

// Normalize resolves invalid scope configurations: an unset mode becomes
// "all", and a "selected" mode with an empty allowed-set degrades to
// "none".
func (p AccessPolicy) Normalize() AccessPolicy {
	if p.ServerScopeMode == "" {
		p.ServerScopeMode = ScopeAll
	}
	if p.ProtocolScopeMode == "" {
		p.ProtocolScopeMode = ScopeAll
	}
	if p.ServerScopeMode == ScopeSelected && len(p.AllowedServerIDs) == 0 {
		p.ServerScopeMode = ScopeNone
	}
	if p.ProtocolScopeMode == ScopeSelected && len(p.AllowedProtocols) == 0 {
		p.ProtocolScopeMode = ScopeNone
	}
	return p
}

// IsRestrictive reports whether the policy constrains anything at all.
func (p AccessPolicy) IsRestrictive() bool {
	return p.ServerScopeMode != ScopeAll || p.ProtocolScopeMode != ScopeAll
}

// AllowsServer reports whether the target server is in scope.
func (p AccessPolicy) AllowsServer(serverID string) bool {
	switch p.ServerScopeMode {
	case ScopeAll:
		return true
	case ScopeSelected:
		return containsFold(p.AllowedServerIDs, serverID)
	default:
		return false
	}
}

// AllowsProtocol reports whether the target protocol is in scope.
func (p AccessPolicy) AllowsProtocol(protocol string) bool {
	switch p.ProtocolScopeMode {
	case ScopeAll:
		return true
	case ScopeSelected:
		return containsFold(p.AllowedProtocols, protocol)
	default:
		return false
	}
}

func containsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
