package links

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/models"
)

// vmessShare is the JSON payload carried inside a vmess:// link.
type vmessShare struct {
	V    string `json:"v"`
	Ps   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni,omitempty"`
	ALPN string `json:"alpn,omitempty"`
	Pbk  string `json:"pbk,omitempty"`
	Fp   string `json:"fp,omitempty"`
	Sid  string `json:"sid,omitempty"`
	Spx  string `json:"spx,omitempty"`
}

func buildVmess(e Entry) (string, string) {
	if strings.TrimSpace(e.Client.ID) == "" {
		return "", ReasonMissingUUID
	}

	t := e.Transport
	share := vmessShare{
		V:    constants.VmessVersion,
		Ps:   tag(e),
		Add:  e.Host,
		Port: strconv.Itoa(e.Inbound.Port),
		ID:   e.Client.ID,
		Aid:  "0",
		Scy:  "auto",
		Net:  t.Network,
		Type: "none",
	}

	if t.HeaderType != "" {
		share.Type = t.HeaderType
	}

	switch t.Network {
	case models.NetworkWS, models.NetworkHTTPUpgrade, models.NetworkXHTTP:
		share.Path = t.Path
		share.Host = t.Host
	case models.NetworkGRPC:
		share.Path = t.ServiceName
		share.Host = t.Authority
	case models.NetworkTCP:
		if t.HeaderType == "http" {
			share.Path = t.Path
			share.Host = t.Host
		}
	case models.NetworkKCP:
		share.Path = t.Seed
	case models.NetworkQUIC:
		share.Host = t.QUICSecurity
		share.Path = t.QUICKey
	}

	switch t.Security {
	case models.SecurityTLS:
		share.TLS = models.SecurityTLS
		share.SNI = t.TLS.SNI
		share.ALPN = strings.Join(t.TLS.ALPN, ",")
	case models.SecurityReality:
		if !realityComplete(t.Reality) {
			return "", ReasonMissingReality
		}
		share.TLS = models.SecurityReality
		share.SNI = t.Reality.SNI
		share.Pbk = t.Reality.PublicKey
		share.Fp = t.Reality.Fingerprint
		share.Sid = t.Reality.ShortID
		share.Spx = firstNonEmpty(t.Reality.SpiderX, constants.DefaultSpiderX)
	}

	payload, err := json.Marshal(share)
	if err != nil {
		return "", "failed to encode vmess payload: " + err.Error()
	}

	return "vmess://" + base64.StdEncoding.EncodeToString(payload), ""
}
