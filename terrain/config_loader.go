package terrain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGridID names a grid whose configuration gives no id.
const DefaultGridID = "default"

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{ProgressInterval: DefaultProgressInterval},
		Walk:     WalkConfig{MaxPathLength: DefaultMaxPathLength, Workers: 1},
		MQTT: MQTTConfig{
			PublishPrefix: "prominence",
			ClientID:      "prominence",
		},
	}
}

// LoadConfig loads the configuration from a YAML file. Fields the file
// leaves unset keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field ranges and combinations.
func (c *Config) Validate() error {
	if c.Grid.File != "" && c.Grid.URL != "" {
		return fmt.Errorf("grid.file and grid.url are mutually exclusive")
	}
	if c.Analysis.ProgressInterval < 0 {
		c.Analysis.ProgressInterval = -1
	}
	if c.Walk.MaxPathLength < 0 {
		return fmt.Errorf("walk.maxPathLength must not be negative, got %d", c.Walk.MaxPathLength)
	}
	if c.Walk.Workers < 0 {
		return fmt.Errorf("walk.workers must not be negative, got %d", c.Walk.Workers)
	}
	if c.Output.SimplifyTolerance < 0 {
		return fmt.Errorf("output.simplifyTolerance must not be negative, got %g", c.Output.SimplifyTolerance)
	}
	if c.MQTT.GridTopic != "" && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.gridTopic is set")
	}
	if strings.ContainsAny(c.Grid.ID, "/#+") {
		return fmt.Errorf("grid.id %q must not contain MQTT topic characters", c.Grid.ID)
	}
	return nil
}

// GridID returns the configured grid id, falling back to the grid file's
// base name and then to DefaultGridID.
func (c *Config) GridID() string {
	if c.Grid.ID != "" {
		return c.Grid.ID
	}
	if c.Grid.File != "" {
		base := filepath.Base(c.Grid.File)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return DefaultGridID
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
