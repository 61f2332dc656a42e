package links

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/models"
)

func buildVless(e Entry) (string, string) {
	if strings.TrimSpace(e.Client.ID) == "" {
		return "", ReasonMissingUUID
	}

	t := e.Transport
	q := url.Values{}
	q.Set("type", t.Network)
	q.Set("encryption", constants.DefaultVlessEncryption)

	flow := e.Client.Flow
	if t.Security == models.SecurityReality && t.Network == models.NetworkTCP && flow == "" {
		flow = constants.DefaultVisionFlow
	}
	if t.Network == models.NetworkTCP {
		setNonEmpty(q, "flow", flow)
	}

	addTransportParams(q, t)

	switch t.Security {
	case models.SecurityTLS:
		q.Set("security", models.SecurityTLS)
		setNonEmpty(q, "sni", firstNonEmpty(t.TLS.SNI, t.Reality.SNI))
		setNonEmpty(q, "alpn", strings.Join(t.TLS.ALPN, ","))
		setNonEmpty(q, "fp", t.TLS.Fingerprint)
		setNonEmpty(q, "ech", t.TLS.ECH)
		if t.TLS.AllowInsecure {
			q.Set("allowInsecure", "1")
		}
	case models.SecurityReality:
		if !realityComplete(t.Reality) {
			return "", ReasonMissingReality
		}
		q.Set("security", models.SecurityReality)
		q.Set("sni", t.Reality.SNI)
		q.Set("pbk", t.Reality.PublicKey)
		q.Set("fp", t.Reality.Fingerprint)
		setNonEmpty(q, "sid", t.Reality.ShortID)
		q.Set("spx", firstNonEmpty(t.Reality.SpiderX, constants.DefaultSpiderX))
		setNonEmpty(q, "pqv", t.Reality.PQV)
		setNonEmpty(q, "alpn", strings.Join(t.TLS.ALPN, ","))
	}

	u := url.URL{
		Scheme:   "vless",
		User:     url.User(e.Client.ID),
		Host:     net.JoinHostPort(e.Host, strconv.Itoa(e.Inbound.Port)),
		RawQuery: q.Encode(),
		Fragment: tag(e),
	}
	return u.String(), ""
}
