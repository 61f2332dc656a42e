package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Network kinds recognized in streamSettings.
const (
	NetworkTCP         = "tcp"
	NetworkWS          = "ws"
	NetworkGRPC        = "grpc"
	NetworkKCP         = "kcp"
	NetworkHTTPUpgrade = "httpupgrade"
	NetworkXHTTP       = "xhttp"
	NetworkQUIC        = "quic"
)

// Security kinds recognized in streamSettings.
const (
	SecurityNone    = "none"
	SecurityTLS     = "tls"
	SecurityReality = "reality"
)

// TLSParams carries the TLS tuple used when security is "tls".
type TLSParams struct {
	SNI           string
	ALPN          []string
	Fingerprint   string
	ECH           string
	AllowInsecure bool
}

// RealityParams carries the Reality tuple. SNI, PublicKey and
// Fingerprint are mandatory for link building; the rest are optional.
type RealityParams struct {
	SNI         string
	PublicKey   string
	Fingerprint string
	ShortID     string
	SpiderX     string
	PQV         string
}

// Transport is the normalized form of an inbound's streamSettings blob:
// network kind, security kind and the kind-specific parameters, parsed
// once at ingestion instead of re-read at each use site.
type Transport struct {
	Network  string
	Security string

	// ws / httpupgrade / xhttp
	Path string
	Host string

	// grpc
	ServiceName string
	Authority   string
	MultiMode   bool

	// tcp / kcp / quic header disguise
	HeaderType string

	// kcp
	Seed string

	// quic
	QUICSecurity string
	QUICKey      string

	TLS     TLSParams
	Reality RealityParams
}

// rawStreamSettings mirrors the panel's streamSettings JSON layout.
type rawStreamSettings struct {
	Network     string `json:"network"`
	Security    string `json:"security"`
	TLSSettings *struct {
		ServerName string   `json:"serverName"`
		ALPN       []string `json:"alpn"`
		Settings   *struct {
			Fingerprint   string `json:"fingerprint"`
			AllowInsecure bool   `json:"allowInsecure"`
			EchConfigList string `json:"echConfigList"`
		} `json:"settings"`
	} `json:"tlsSettings"`
	RealitySettings *struct {
		ServerNames []string `json:"serverNames"`
		ShortIDs    []string `json:"shortIds"`
		Mldsa65     string   `json:"mldsa65Verify"`
		Settings    *struct {
			PublicKey   string `json:"publicKey"`
			Fingerprint string `json:"fingerprint"`
			SpiderX     string `json:"spiderX"`
		} `json:"settings"`
	} `json:"realitySettings"`
	WSSettings *struct {
		Path    string            `json:"path"`
		Host    string            `json:"host"`
		Headers map[string]string `json:"headers"`
	} `json:"wsSettings"`
	GRPCSettings *struct {
		ServiceName string `json:"serviceName"`
		Authority   string `json:"authority"`
		MultiMode   bool   `json:"multiMode"`
	} `json:"grpcSettings"`
	KCPSettings *struct {
		Seed   string `json:"seed"`
		Header *struct {
			Type string `json:"type"`
		} `json:"header"`
	} `json:"kcpSettings"`
	TCPSettings *struct {
		Header *struct {
			Type    string `json:"type"`
			Request *struct {
				Path    []string            `json:"path"`
				Headers map[string][]string `json:"headers"`
			} `json:"request"`
		} `json:"header"`
	} `json:"tcpSettings"`
	HTTPUpgradeSettings *struct {
		Path string `json:"path"`
		Host string `json:"host"`
	} `json:"httpupgradeSettings"`
	XHTTPSettings *struct {
		Path string `json:"path"`
		Host string `json:"host"`
	} `json:"xhttpSettings"`
	QUICSettings *struct {
		Security string `json:"security"`
		Key      string `json:"key"`
		Header   *struct {
			Type string `json:"type"`
		} `json:"header"`
	} `json:"quicSettings"`
}

// ParseTransport normalizes a raw streamSettings JSON string. An empty
// blob yields a plain tcp/none transport.
func ParseTransport(raw string) (*Transport, error) {
	t := &Transport{Network: NetworkTCP, Security: SecurityNone}
	if strings.TrimSpace(raw) == "" {
		return t, nil
	}

	var ss rawStreamSettings
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return nil, fmt.Errorf("failed to parse stream settings: %w", err)
	}

	if ss.Network != "" {
		t.Network = strings.ToLower(ss.Network)
	}
	if ss.Security != "" {
		t.Security = strings.ToLower(ss.Security)
	}

	if ss.TLSSettings != nil {
		t.TLS.SNI = ss.TLSSettings.ServerName
		t.TLS.ALPN = ss.TLSSettings.ALPN
		if inner := ss.TLSSettings.Settings; inner != nil {
			t.TLS.Fingerprint = inner.Fingerprint
			t.TLS.AllowInsecure = inner.AllowInsecure
			t.TLS.ECH = inner.EchConfigList
		}
	}

	if ss.RealitySettings != nil {
		if len(ss.RealitySettings.ServerNames) > 0 {
			t.Reality.SNI = ss.RealitySettings.ServerNames[0]
		}
		if len(ss.RealitySettings.ShortIDs) > 0 {
			t.Reality.ShortID = ss.RealitySettings.ShortIDs[0]
		}
		t.Reality.PQV = ss.RealitySettings.Mldsa65
		if inner := ss.RealitySettings.Settings; inner != nil {
			t.Reality.PublicKey = inner.PublicKey
			t.Reality.Fingerprint = inner.Fingerprint
			t.Reality.SpiderX = inner.SpiderX
		}
	}

	switch t.Network {
	case NetworkWS:
		if ss.WSSettings != nil {
			t.Path = ss.WSSettings.Path
			t.Host = ss.WSSettings.Host
			if t.Host == "" && ss.WSSettings.Headers != nil {
				t.Host = ss.WSSettings.Headers["Host"]
			}
		}
	case NetworkGRPC:
		if ss.GRPCSettings != nil {
			t.ServiceName = ss.GRPCSettings.ServiceName
			t.Authority = ss.GRPCSettings.Authority
			t.MultiMode = ss.GRPCSettings.MultiMode
		}
	case NetworkKCP:
		if ss.KCPSettings != nil {
			t.Seed = ss.KCPSettings.Seed
			if ss.KCPSettings.Header != nil {
				t.HeaderType = ss.KCPSettings.Header.Type
			}
		}
	case NetworkTCP:
		if ss.TCPSettings != nil && ss.TCPSettings.Header != nil {
			t.HeaderType = ss.TCPSettings.Header.Type
			if req := ss.TCPSettings.Header.Request; req != nil {
				if len(req.Path) > 0 {
					t.Path = req.Path[0]
				}
				if hosts := req.Headers["Host"]; len(hosts) > 0 {
					t.Host = hosts[0]
				}
			}
		}
	case NetworkHTTPUpgrade:
		if ss.HTTPUpgradeSettings != nil {
			t.Path = ss.HTTPUpgradeSettings.Path
			t.Host = ss.HTTPUpgradeSettings.Host
		}
	case NetworkXHTTP:
		if ss.XHTTPSettings != nil {
			t.Path = ss.XHTTPSettings.Path
			t.Host = ss.XHTTPSettings.Host
		}
	case NetworkQUIC:
		if ss.QUICSettings != nil {
			t.QUICSecurity = ss.QUICSettings.Security
			t.QUICKey = ss.QUICSettings.Key
			if ss.QUICSettings.Header != nil {
				t.HeaderType = ss.QUICSettings.Header.Type
			}
		}
	}

	return t, nil
}
