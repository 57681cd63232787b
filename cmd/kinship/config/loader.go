// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global KinshipConfig
	once   sync.Once
)

// DefaultPath returns ~/.kinship/kinship.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".kinship", "kinship.yaml"), nil
}

// Load ensures the config at path (DefaultPath when empty) is loaded into
// Global. Only the first call reads the file.
func Load(path string) error {
	var err error
	once.Do(func() {
		Global, err = Read(path)
	})
	return err
}

// Read loads and validates the config at path, creating it with defaults if
// it does not exist. Fields missing from the file keep their defaults.
func Read(path string) (KinshipConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return KinshipConfig{}, err
		}
		path = p
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return KinshipConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return KinshipConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return KinshipConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return KinshipConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
