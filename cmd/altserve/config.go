// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the JSON configuration file. Every option has a default: a
// missing file is not an error unless its path was given explicitly.
type Config struct {
	// AllowedPaths are the directories the engine may touch. Defaults to
	// the process working directory.
	AllowedPaths []string `json:"allowed_paths"`

	Logging struct {
		// Level is one of trace, debug, info, warn, error. Default warn.
		Level string `json:"level"`
	} `json:"logging"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".altserve", "config.json")
}

func loadConfig(path string, explicit bool) (*Config, error) {
	cfg := &Config{}
	cfg.Logging.Level = "warn"

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}
