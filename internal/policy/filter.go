package policy

import (
	"xui-sub-hub/internal/models"
)

// Reason tags returned by the filter.
const (
	ReasonScopeAll    = "scope-all"
	ReasonScopeNone   = "scope-none"
	ReasonSelected    = "selected"
	ReasonNotSelected = "not-in-selected"
)

// Decision is the outcome of a single scope check.
type Decision struct {
	Allowed bool
	Reason  string
}

// FilterServer evaluates whether the target server is in scope for the
// policy. Pure and total: no I/O, no failure mode.
func FilterServer(p models.AccessPolicy, serverID string) Decision {
	p = p.Normalize()
	switch p.ServerScopeMode {
	case models.ScopeAll:
		return Decision{Allowed: true, Reason: ReasonScopeAll}
	case models.ScopeSelected:
		if p.AllowsServer(serverID) {
			return Decision{Allowed: true, Reason: ReasonSelected}
		}
		return Decision{Allowed: false, Reason: ReasonNotSelected}
	default:
		return Decision{Allowed: false, Reason: ReasonScopeNone}
	}
}

// FilterProtocol evaluates whether the target protocol is in scope for
// the policy.
func FilterProtocol(p models.AccessPolicy, protocol string) Decision {
	p = p.Normalize()
	switch p.ProtocolScopeMode {
	case models.ScopeAll:
		return Decision{Allowed: true, Reason: ReasonScopeAll}
	case models.ScopeSelected:
		if p.AllowsProtocol(protocol) {
			return Decision{Allowed: true, Reason: ReasonSelected}
		}
		return Decision{Allowed: false, Reason: ReasonNotSelected}
	default:
		return Decision{Allowed: false, Reason: ReasonScopeNone}
	}
}
