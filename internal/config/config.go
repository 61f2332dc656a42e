package config

import (
	"net/url"
	"strings"
)

// Config represents the application configuration
type Config struct {
	LogLevel   string
	ListenAddr string

	// Externally-resolvable base URL for the public subscription
	// endpoints; when empty the composer falls back to request headers.
	PublicBaseURL string

	// Converter endpoints; all optional.
	ConverterBaseURL          string
	ConverterClashConfigURL   string
	ConverterSingboxConfigURL string

	ServersFile string
	PolicyFile  string
	TokensFile  string

	Servers []ServerConfig

	Telegram TelegramConfig
}

// TelegramConfig holds the optional delivery bot configuration.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64
}

// ServerConfig holds the configuration for one backend panel.
type ServerConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	APIURL       string `yaml:"apiUrl"`
	SubURLPrefix string `yaml:"subUrlPrefix"`
	ConnectHost  string `yaml:"connectHost"`
	Insecure     bool   `yaml:"insecure"`
}

// BotEnabled reports whether the delivery bot should be started.
func (c *Config) BotEnabled() bool {
	return strings.TrimSpace(c.Telegram.Token) != ""
}

// HostFromURL extracts the hostname from a URL string.
func HostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	}
	return u.Hostname()
}
