package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound represents a listener on a panel. Settings and StreamSettings
// arrive as raw JSON strings and are parsed on demand.
type Inbound struct {
	ID             int    `json:"id"`
	Remark         string `json:"remark"`
	Enable         bool   `json:"enable"`
	Listen         string `json:"listen"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
}

// InboundSettings is the decoded form of the Settings blob. For
// shadowsocks inbounds the cipher method and a shared password live at
// the top level, outside the client list.
type InboundSettings struct {
	Clients  []ClientCredential `json:"clients"`
	Method   string             `json:"method"`
	Password string             `json:"password"`
}

// ParseSettings decodes the inbound's raw settings JSON.
func (i *Inbound) ParseSettings() (*InboundSettings, error) {
	if strings.TrimSpace(i.Settings) == "" {
		return &InboundSettings{}, nil
	}
	var settings InboundSettings
	if err := json.Unmarshal([]byte(i.Settings), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings for inbound %d: %w", i.ID, err)
	}
	return &settings, nil
}

// DisplayName returns the inbound's remark, falling back to
// "<protocol>-<port>" when no remark is set.
func (i *Inbound) DisplayName() string {
	if strings.TrimSpace(i.Remark) != "" {
		return i.Remark
	}
	return fmt.Sprintf("%s-%d", i.Protocol, i.Port)
}
