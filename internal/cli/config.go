package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/devicekv/dynamo"
)

// FileConfig is the YAML configuration file read with --config. Flags
// override its values.
type FileConfig struct {
	Bundle  string       `yaml:"bundle"`
	Device  string       `yaml:"device"`
	Profile string       `yaml:"profile"`
	Region  string       `yaml:"region"`
	Engine  EngineConfig `yaml:"engine"`
}

// EngineConfig holds the engine settings of a FileConfig. Zero values keep
// the engine defaults.
type EngineConfig struct {
	TablePrefix      string        `yaml:"tablePrefix"`
	NumShards        int           `yaml:"numShards"`
	PollInterval     time.Duration `yaml:"pollInterval"`
	SyncTimeout      time.Duration `yaml:"syncTimeout"`
	RequestTTL       time.Duration `yaml:"requestTTL"`
	TableWaitTimeout time.Duration `yaml:"tableWaitTimeout"`
}

// LoadConfig reads a configuration file. Unknown fields are rejected.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Dynamo returns the engine configuration, starting from dynamo.DefaultConfig.
func (e EngineConfig) Dynamo() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	if e.TablePrefix != "" {
		cfg.TablePrefix = e.TablePrefix
	}
	if e.NumShards != 0 {
		cfg.NumShards = e.NumShards
	}
	if e.PollInterval != 0 {
		cfg.PollInterval = e.PollInterval
	}
	if e.SyncTimeout != 0 {
		cfg.SyncTimeout = e.SyncTimeout
	}
	if e.RequestTTL != 0 {
		cfg.RequestTTL = e.RequestTTL
	}
	if e.TableWaitTimeout != 0 {
		cfg.TableWaitTimeout = e.TableWaitTimeout
	}
	return cfg
}
