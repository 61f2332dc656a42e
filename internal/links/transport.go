package links

import (
	"net/url"

	"xui-sub-hub/internal/models"
)

// addTransportParams appends the network-specific query parameters
// shared by the vless and trojan encoders. Absent optional values are
// omitted entirely, never emitted as empty strings.
func addTransportParams(q url.Values, t *models.Transport) {
	switch t.Network {
	case models.NetworkWS, models.NetworkHTTPUpgrade, models.NetworkXHTTP:
		setNonEmpty(q, "path", t.Path)
		setNonEmpty(q, "host", t.Host)
	case models.NetworkGRPC:
		setNonEmpty(q, "serviceName", t.ServiceName)
		setNonEmpty(q, "authority", t.Authority)
		if t.MultiMode {
			q.Set("mode", "multi")
		}
	case models.NetworkTCP:
		setNonEmpty(q, "headerType", t.HeaderType)
		if t.HeaderType == "http" {
			setNonEmpty(q, "path", t.Path)
			setNonEmpty(q, "host", t.Host)
		}
	case models.NetworkKCP:
		setNonEmpty(q, "seed", t.Seed)
		setNonEmpty(q, "headerType", t.HeaderType)
	case models.NetworkQUIC:
		setNonEmpty(q, "quicSecurity", t.QUICSecurity)
		setNonEmpty(q, "key", t.QUICKey)
		setNonEmpty(q, "headerType", t.HeaderType)
	}
}

func setNonEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
