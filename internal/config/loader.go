package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads the configuration from environment variables and the
// servers YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("SERVERS_FILE", "servers.yml")

	// Define environment variables
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("LISTEN_ADDR")
	v.BindEnv("PUBLIC_BASE_URL")
	v.BindEnv("CONVERTER_BASE_URL")
	v.BindEnv("CONVERTER_CLASH_CONFIG_URL")
	v.BindEnv("CONVERTER_SINGBOX_CONFIG_URL")
	v.BindEnv("SERVERS_FILE")
	v.BindEnv("POLICY_FILE")
	v.BindEnv("TOKENS_FILE")
	v.BindEnv("TG_TOKEN")
	v.BindEnv("TG_CHAT_IDS")

	cfg := &Config{
		LogLevel:                  v.GetString("LOG_LEVEL"),
		ListenAddr:                v.GetString("LISTEN_ADDR"),
		PublicBaseURL:             strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")),
		ConverterBaseURL:          strings.TrimSpace(v.GetString("CONVERTER_BASE_URL")),
		ConverterClashConfigURL:   strings.TrimSpace(v.GetString("CONVERTER_CLASH_CONFIG_URL")),
		ConverterSingboxConfigURL: strings.TrimSpace(v.GetString("CONVERTER_SINGBOX_CONFIG_URL")),
		ServersFile:               strings.TrimSpace(v.GetString("SERVERS_FILE")),
		PolicyFile:                strings.TrimSpace(v.GetString("POLICY_FILE")),
		TokensFile:                strings.TrimSpace(v.GetString("TOKENS_FILE")),
		Telegram: TelegramConfig{
			Token: strings.TrimSpace(v.GetString("TG_TOKEN")),
		},
	}

	// Parse chat IDs for the optional delivery bot
	chatIDsStr := v.GetString("TG_CHAT_IDS")
	if chatIDsStr != "" {
		chatIDsSlice := strings.Split(chatIDsStr, ",")
		chatIDs := make([]int64, 0, len(chatIDsSlice))
		for _, idStr := range chatIDsSlice {
			var id int64
			if _, err := fmt.Sscanf(strings.TrimSpace(idStr), "%d", &id); err == nil {
				chatIDs = append(chatIDs, id)
			}
		}
		cfg.Telegram.ChatIDs = chatIDs
	}

	servers, err := loadServers(cfg.ServersFile)
	if err != nil {
		return nil, err
	}
	cfg.Servers = servers

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// serversFile mirrors the YAML layout of the servers registry file.
type serversFile struct {
	Servers []ServerConfig `yaml:"servers"`
}

func loadServers(path string) ([]ServerConfig, error) {
	if path == "" {
		return nil, errors.New("servers file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file %s: %w", path, err)
	}

	var parsed serversFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %s: %w", path, err)
	}

	for i := range parsed.Servers {
		s := &parsed.Servers[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		s.APIURL = strings.TrimSuffix(strings.TrimSpace(s.APIURL), "/")
		if s.Name == "" {
			s.Name = s.ID
		}
	}

	return parsed.Servers, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Servers) == 0 {
		return errors.New("at least one server must be configured")
	}

	seen := make(map[string]bool, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if s.ID == "" {
			return errors.New("server id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate server id: %s", s.ID)
		}
		seen[s.ID] = true
		if s.User == "" || s.Password == "" {
			return fmt.Errorf("server %s: user and password are required", s.ID)
		}
		if s.APIURL == "" {
			return fmt.Errorf("server %s: API URL is required", s.ID)
		}
	}

	return nil
}
