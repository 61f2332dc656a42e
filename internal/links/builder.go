package links

import (
	"fmt"
	"strings"

	"xui-sub-hub/internal/models"
)

// Entry bundles everything needed to reconstruct one connection URI:
// the matched credential plus its inbound and transport context.
type Entry struct {
	ServerName string
	Host       string
	Inbound    models.Inbound
	Transport  *models.Transport
	Client     models.ClientCredential

	// Inbound-level shadowsocks settings; empty for other protocols.
	SSMethod   string
	SSPassword string
}

// Diagnostic reasons for entries that could not be encoded.
const (
	ReasonMissingUUID     = "missing uuid"
	ReasonMissingPassword = "missing password"
	ReasonMissingSSParams = "missing shadowsocks method or password"
	ReasonMissingReality  = "missing reality required params: sni/pbk/fp"
)

// Supported reports whether the protocol can be reconstructed.
func Supported(protocol string) bool {
	switch strings.ToLower(protocol) {
	case "vmess", "vless", "trojan", "shadowsocks":
		return true
	default:
		return false
	}
}

// Build encodes the entry into a canonical URI for its protocol. On
// failure it returns an empty URI and a diagnostic reason.
func Build(e Entry) (uri string, reason string) {
	switch strings.ToLower(e.Inbound.Protocol) {
	case "vmess":
		return buildVmess(e)
	case "vless":
		return buildVless(e)
	case "trojan":
		return buildTrojan(e)
	case "shadowsocks":
		return buildShadowsocks(e)
	default:
		return "", fmt.Sprintf("unsupported protocol: %s", e.Inbound.Protocol)
	}
}

// tag builds the cosmetic URI fragment:
// "<serverName>-<inboundRemarkOrProtocolPort>-<identity>".
func tag(e Entry) string {
	return fmt.Sprintf("%s-%s-%s", e.ServerName, e.Inbound.DisplayName(), e.Client.Email)
}

// realityComplete reports whether the mandatory part of the Reality
// tuple is present.
func realityComplete(r models.RealityParams) bool {
	return r.SNI != "" && r.PublicKey != "" && r.Fingerprint != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
