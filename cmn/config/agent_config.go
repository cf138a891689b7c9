package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the device agent's user-facing configuration (spec §6,
// "Agent configuration"). Loaded from a YAML file so a user can hand-edit
// it, matching the recognized-key contract verbatim.
type AgentConfig struct {
	SourceDirectory     string   `yaml:"source_directory"`
	WatchEnabled        bool     `yaml:"watch_enabled"`
	APIURL              string   `yaml:"api_url"`
	AutoSync            bool     `yaml:"auto_sync"`
	BatchSize           int      `yaml:"batch_size"`
	RetryAttempts       int      `yaml:"retry_attempts"`
	SyncIntervalSeconds int      `yaml:"sync_interval_seconds"`
	SyncAllNotebooks    bool     `yaml:"sync_all_notebooks"`
	SelectedNotebooks   []string `yaml:"selected_notebooks"`
}

func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		WatchEnabled:        true,
		AutoSync:            true,
		BatchSize:           10,
		RetryAttempts:       3,
		SyncIntervalSeconds: 60,
	}
}

func (c *AgentConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func LoadAgentConfig(path string) (*AgentConfig, error) {
	c := DefaultAgentConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

func SaveAgentConfig(path string, c *AgentConfig) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
