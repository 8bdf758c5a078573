package kibitz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Engine    string            `json:"engine"`
	Millis    int               `json:"millis"`
	Threshold int               `json:"threshold"`
	Threads   int               `json:"threads"`
	Hash      int               `json:"hash"`
	Options   map[string]string `json:"options"`
}

const (
	DefaultMillis    = 1000
	DefaultThreshold = 200
)

func FindConfigPath() (string, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	dir := cwd
	for {
		path := filepath.Join(dir, "config.json")
		if _, err := os.Stat(path); err == nil {
			return path, filepath.Dir(path), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("config.json not found from %s", cwd)
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Millis <= 0 {
		cfg.Millis = DefaultMillis
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return cfg, nil
}

// EngineOptions merges Threads and Hash into the free-form options, which
// win on conflict.
func (c Config) EngineOptions() map[string]string {
	opts := make(map[string]string, len(c.Options)+2)
	if c.Threads > 0 {
		opts["Threads"] = strconv.Itoa(c.Threads)
	}
	if c.Hash > 0 {
		opts["Hash"] = strconv.Itoa(c.Hash)
	}
	for k, v := range c.Options {
		opts[k] = v
	}
	return opts
}

// EnginePath resolves the engine against the directory holding the config.
func (c Config) EnginePath(configDir string) (string, error) {
	if c.Engine == "" {
		return "", errors.New("engine path is required")
	}
	if filepath.IsAbs(c.Engine) {
		return c.Engine, nil
	}
	return filepath.Join(configDir, c.Engine), nil
}
