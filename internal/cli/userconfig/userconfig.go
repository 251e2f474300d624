package userconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "argscan"
	configFileName = "config.yaml"

	// DirEnv overrides the configuration directory (~/.config/argscan)
	DirEnv = "ARGSCAN_CONFIG_DIR"
)

// UserConfig represents the user's local configuration stored in ~/.config/argscan/config.yaml
type UserConfig struct {
	Server        string   `yaml:"server,omitempty"`
	APIBase       string   `yaml:"api_base,omitempty"`
	RequireLogin  *bool    `yaml:"require_login,omitempty"`
	RecentServers []string `yaml:"recent_servers,omitempty"`
}

// maxRecentServers bounds the history offered by use-server
const maxRecentServers = 5

// Dir returns the directory holding the user config and the default session file
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetServer updates the selected server URL and saves the config
func SetServer(server string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.Server = server
	cfg.RememberServer(server)
	return Save(cfg)
}

// RememberServer moves server to the front of the recent list
func (c *UserConfig) RememberServer(server string) {
	if server == "" {
		return
	}

	recent := []string{server}
	for _, s := range c.RecentServers {
		if s != server && len(recent) < maxRecentServers {
			recent = append(recent, s)
		}
	}
	c.RecentServers = recent
}
