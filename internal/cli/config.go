package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// Config is the contents of config.toml. Flags override every field.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Lineage LineageConfig `toml:"lineage"`
	Cache   CacheConfig   `toml:"cache"`
	Mongo   MongoConfig   `toml:"mongo"`
	Server  ServerConfig  `toml:"server"`
	Frame   FrameConfig   `toml:"frame"`
}

// BackendConfig selects the lineage API.
type BackendConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// LineageConfig overrides the built-in root and anchor.
type LineageConfig struct {
	RootID    string `toml:"root_id"`
	RootName  string `toml:"root_name"`
	RootImage string `toml:"root_image"`
	RootYear  int    `toml:"root_year"`
	AnchorID  string `toml:"anchor_id"`
}

// CacheConfig controls the byte cache. Redis wins over the directory when
// both are set.
type CacheConfig struct {
	Dir    string `toml:"dir"`
	Redis  string `toml:"redis"`
	Prefix string `toml:"prefix"` // namespaces keys in a shared redis
}

// MongoConfig enables Mongo-backed layout snapshots.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// ServerConfig configures `lineage serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// FrameConfig is the default render size.
type FrameConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	root := lineage.DefaultConfig()
	return &Config{
		Lineage: LineageConfig{
			RootID:    root.Root.ID,
			RootName:  root.Root.Name,
			RootImage: root.Root.ImageURL,
			RootYear:  root.Root.Year,
			AnchorID:  root.AnchorID,
		},
		Mongo:  MongoConfig{Database: appName},
		Server: ServerConfig{Addr: ":8080"},
		Frame:  FrameConfig{Width: 1280, Height: 800},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LineageConfig returns the graph configuration.
func (c *Config) LineageConfig() lineage.Config {
	return lineage.Config{
		Root: lineage.RootSpec{
			ID:       c.Lineage.RootID,
			Name:     c.Lineage.RootName,
			ImageURL: c.Lineage.RootImage,
			Year:     c.Lineage.RootYear,
		},
		AnchorID: c.Lineage.AnchorID,
	}
}

// configPath returns config.toml under the XDG config directory
// (~/.config/lineage/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
