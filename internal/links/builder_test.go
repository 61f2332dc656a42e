package links

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"xui-sub-hub/internal/models"
)

func baseEntry(protocol string, t *models.Transport) Entry {
	return Entry{
		ServerName: "eu-1",
		Host:       "vpn.example.com",
		Inbound: models.Inbound{
			ID:       7,
			Remark:   "main",
			Port:     443,
			Protocol: protocol,
		},
		Transport: t,
		Client: models.ClientCredential{
			ID:       "b831381d-6324-4d53-ad4f-8cda48b30811",
			Email:    "alice@example.com",
			Password: "s3cret",
		},
	}
}

func parseQuery(t *testing.T, uri string) (*url.URL, url.Values) {
	t.Helper()
	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("failed to parse uri %q: %v", uri, err)
	}
	return u, u.Query()
}

func TestBuildVless_TCPReality(t *testing.T) {
	e := baseEntry("vless", &models.Transport{
		Network:  models.NetworkTCP,
		Security: models.SecurityReality,
		Reality: models.RealityParams{
			SNI:         "cdn.example.org",
			PublicKey:   "pbk-value",
			Fingerprint: "chrome",
			ShortID:     "ab12",
		},
	})

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	u, q := parseQuery(t, uri)

	if u.Scheme != "vless" {
		t.Errorf("scheme = %q, want vless", u.Scheme)
	}
	if u.User.Username() != e.Client.ID {
		t.Errorf("uuid = %q, want %q", u.User.Username(), e.Client.ID)
	}
	if u.Host != "vpn.example.com:443" {
		t.Errorf("host = %q", u.Host)
	}
	if got := q.Get("flow"); got != "xtls-rprx-vision" {
		t.Errorf("flow = %q, want default vision flow", got)
	}
	if got := q.Get("security"); got != "reality" {
		t.Errorf("security = %q", got)
	}
	if got := q.Get("pbk"); got != "pbk-value" {
		t.Errorf("pbk = %q", got)
	}
	if got := q.Get("spx"); got != "/" {
		t.Errorf("spx = %q, want default /", got)
	}
	if got := q.Get("sid"); got != "ab12" {
		t.Errorf("sid = %q", got)
	}
	if u.Fragment != "eu-1-main-alice@example.com" {
		t.Errorf("fragment = %q", u.Fragment)
	}
}

func TestBuildVless_RealityMissingPbk(t *testing.T) {
	e := baseEntry("vless", &models.Transport{
		Network:  models.NetworkTCP,
		Security: models.SecurityReality,
		Reality: models.RealityParams{
			SNI:         "cdn.example.org",
			Fingerprint: "chrome",
		},
	})

	uri, reason := Build(e)
	if uri != "" {
		t.Fatalf("expected no uri, got %q", uri)
	}
	if !strings.Contains(reason, "reality") {
		t.Errorf("reason = %q, want mention of reality", reason)
	}
}

func TestBuildVless_MissingUUID(t *testing.T) {
	e := baseEntry("vless", &models.Transport{Network: models.NetworkTCP, Security: models.SecurityNone})
	e.Client.ID = ""

	uri, reason := Build(e)
	if uri != "" || reason != ReasonMissingUUID {
		t.Fatalf("got (%q, %q), want missing uuid", uri, reason)
	}
}

func TestBuildVless_WSWithTLS(t *testing.T) {
	e := baseEntry("vless", &models.Transport{
		Network:  models.NetworkWS,
		Security: models.SecurityTLS,
		Path:     "/ws",
		Host:     "cdn.example.org",
		TLS: models.TLSParams{
			SNI:           "cdn.example.org",
			ALPN:          []string{"h2", "http/1.1"},
			Fingerprint:   "chrome",
			AllowInsecure: true,
		},
	})

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	_, q := parseQuery(t, uri)

	if got := q.Get("type"); got != "ws" {
		t.Errorf("type = %q", got)
	}
	if got := q.Get("path"); got != "/ws" {
		t.Errorf("path = %q", got)
	}
	if got := q.Get("alpn"); got != "h2,http/1.1" {
		t.Errorf("alpn = %q", got)
	}
	if got := q.Get("allowInsecure"); got != "1" {
		t.Errorf("allowInsecure = %q", got)
	}
	if q.Has("flow") {
		t.Error("flow must not be set for ws transport")
	}
}

func TestBuildVless_GRPCMultiMode(t *testing.T) {
	e := baseEntry("vless", &models.Transport{
		Network:     models.NetworkGRPC,
		Security:    models.SecurityNone,
		ServiceName: "svc",
		Authority:   "auth.example.org",
		MultiMode:   true,
	})

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	_, q := parseQuery(t, uri)

	if got := q.Get("serviceName"); got != "svc" {
		t.Errorf("serviceName = %q", got)
	}
	if got := q.Get("authority"); got != "auth.example.org" {
		t.Errorf("authority = %q", got)
	}
	if got := q.Get("mode"); got != "multi" {
		t.Errorf("mode = %q", got)
	}
}

func TestBuildVless_OmitsEmptyOptionals(t *testing.T) {
	e := baseEntry("vless", &models.Transport{
		Network:  models.NetworkWS,
		Security: models.SecurityNone,
	})

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	_, q := parseQuery(t, uri)

	for _, key := range []string{"path", "host", "sni", "alpn", "fp", "ech"} {
		if q.Has(key) {
			t.Errorf("query must omit empty %s, got %q", key, q.Get(key))
		}
	}
}

func TestBuildVmess_WSWithTLS(t *testing.T) {
	e := baseEntry("vmess", &models.Transport{
		Network:  models.NetworkWS,
		Security: models.SecurityTLS,
		Path:     "/ws",
		Host:     "cdn.example.org",
		TLS: models.TLSParams{
			SNI:  "cdn.example.org",
			ALPN: []string{"h2"},
		},
	})

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	if !strings.HasPrefix(uri, "vmess://") {
		t.Fatalf("uri = %q", uri)
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "vmess://"))
	if err != nil {
		t.Fatalf("vmess payload is not valid base64: %v", err)
	}
	var share map[string]interface{}
	if err := json.Unmarshal(payload, &share); err != nil {
		t.Fatalf("vmess payload is not valid json: %v", err)
	}

	if share["add"] != "vpn.example.com" {
		t.Errorf("add = %v", share["add"])
	}
	if share["port"] != "443" {
		t.Errorf("port = %v", share["port"])
	}
	if share["net"] != "ws" {
		t.Errorf("net = %v", share["net"])
	}
	if share["tls"] != "tls" {
		t.Errorf("tls = %v", share["tls"])
	}
	if share["sni"] != "cdn.example.org" {
		t.Errorf("sni = %v", share["sni"])
	}
	if share["ps"] != "eu-1-main-alice@example.com" {
		t.Errorf("ps = %v", share["ps"])
	}
}

func TestBuildVmess_RealityMissingParams(t *testing.T) {
	e := baseEntry("vmess", &models.Transport{
		Network:  models.NetworkTCP,
		Security: models.SecurityReality,
		Reality:  models.RealityParams{SNI: "cdn.example.org"},
	})

	uri, reason := Build(e)
	if uri != "" {
		t.Fatalf("expected no uri, got %q", uri)
	}
	if reason != ReasonMissingReality {
		t.Errorf("reason = %q", reason)
	}
}

func TestBuildVmess_MissingUUID(t *testing.T) {
	e := baseEntry("vmess", &models.Transport{Network: models.NetworkTCP, Security: models.SecurityNone})
	e.Client.ID = ""

	if _, reason := Build(e); reason != ReasonMissingUUID {
		t.Errorf("reason = %q", reason)
	}
}

func TestBuildTrojan_PasswordFallsBackToID(t *testing.T) {
	e := baseEntry("trojan", &models.Transport{Network: models.NetworkTCP, Security: models.SecurityTLS})
	e.Client.Password = ""

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	u, _ := parseQuery(t, uri)
	if u.User.Username() != e.Client.ID {
		t.Errorf("password = %q, want client id fallback", u.User.Username())
	}
}

func TestBuildTrojan_MissingPassword(t *testing.T) {
	e := baseEntry("trojan", &models.Transport{Network: models.NetworkTCP, Security: models.SecurityTLS})
	e.Client.Password = ""
	e.Client.ID = ""

	if _, reason := Build(e); reason != ReasonMissingPassword {
		t.Errorf("reason = %q", reason)
	}
}

func TestBuildShadowsocks(t *testing.T) {
	e := baseEntry("shadowsocks", &models.Transport{Network: models.NetworkTCP})
	e.SSMethod = "aes-256-gcm"

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	if !strings.HasPrefix(uri, "ss://") {
		t.Fatalf("uri = %q", uri)
	}

	userInfo := strings.TrimPrefix(uri[:strings.Index(uri, "@")], "ss://")
	decoded, err := base64.StdEncoding.DecodeString(userInfo)
	if err != nil {
		t.Fatalf("userinfo is not valid base64: %v", err)
	}
	if string(decoded) != "aes-256-gcm:s3cret" {
		t.Errorf("userinfo = %q", decoded)
	}
	if !strings.Contains(uri, "@vpn.example.com:443#") {
		t.Errorf("uri = %q", uri)
	}
}

func TestBuildShadowsocks_MissingMethod(t *testing.T) {
	e := baseEntry("shadowsocks", &models.Transport{Network: models.NetworkTCP})

	if _, reason := Build(e); reason != ReasonMissingSSParams {
		t.Errorf("reason = %q", reason)
	}
}

func TestSupported(t *testing.T) {
	for _, protocol := range []string{"vmess", "vless", "trojan", "shadowsocks", "VLESS"} {
		if !Supported(protocol) {
			t.Errorf("Supported(%q) = false", protocol)
		}
	}
	for _, protocol := range []string{"wireguard", "socks", "http", ""} {
		if Supported(protocol) {
			t.Errorf("Supported(%q) = true", protocol)
		}
	}
}

func TestTagFallsBackToProtocolPort(t *testing.T) {
	e := baseEntry("vless", &models.Transport{Network: models.NetworkTCP, Security: models.SecurityNone})
	e.Inbound.Remark = ""

	uri, reason := Build(e)
	if reason != "" {
		t.Fatalf("unexpected failure: %s", reason)
	}
	u, _ := parseQuery(t, uri)
	if u.Fragment != "eu-1-vless-443-alice@example.com" {
		t.Errorf("fragment = %q", u.Fragment)
	}
}
