// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Database struct {
		Path string `json:"path"`
	} `json:"database"`

	Content struct {
		CacheSize int `json:"cache_size"` // decompressed blobs held in memory
	} `json:"content"`

	ShareLinks struct {
		TTLDays int `json:"ttl_days"`
	} `json:"share_links"`

	Auth struct {
		Secret           string `json:"secret"`
		AccessTTLMinutes int    `json:"access_ttl_minutes"`
		RefreshTTLHours  int    `json:"refresh_ttl_hours"`
	} `json:"auth"`

	Environment string `json:"environment"` // dev, prod
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

func DefaultPath() string {
	env := os.Getenv("BITSTORE_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// WriteDefault seeds path with a default configuration, including a
// freshly generated auth secret. Refuses to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generating auth secret: %w", err)
	}

	var config Config
	config.applyDefaults()
	config.Environment = "dev"
	config.Auth.Secret = hex.EncodeToString(secret)

	data, err := json.MarshalIndent(&config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Database.Path == "" {
		c.Database.Path = "data"
	}
	if c.Content.CacheSize == 0 {
		c.Content.CacheSize = 1000
	}
	if c.ShareLinks.TTLDays == 0 {
		c.ShareLinks.TTLDays = 10
	}
	if c.Auth.AccessTTLMinutes == 0 {
		c.Auth.AccessTTLMinutes = 30
	}
	if c.Auth.RefreshTTLHours == 0 {
		c.Auth.RefreshTTLHours = 24 * 7
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Watch re-reads the config file whenever it changes and hands the
// fresh copy to onChange. Editors replace rather than rewrite files, so
// the parent directory is watched and events are filtered by name.
// Returns a stop function.
func Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					// Half-written file; the next event will retry.
					continue
				}
				onChange(cfg)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
