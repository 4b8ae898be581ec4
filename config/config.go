// Copyright 2014 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes the server's TOML configuration file, the
// way cs3org-reva decodes a plain struct per service from its own
// config map.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// LockManager holds the recognized lock-manager options.
type LockManager struct {
	MaxTimeoutSeconds     int `toml:"max_timeout_seconds"`
	DefaultTimeoutSeconds int `toml:"default_timeout_seconds"`
	SweepIntervalMS       int `toml:"sweep_interval_ms"`
}

// Mount names one distributor prefix-to-provider binding.
type Mount struct {
	Prefix   string `toml:"prefix"`
	Provider string `toml:"provider"` // references a [providers.<id>] table
}

// Distributor holds the recognized distributor options.
type Distributor struct {
	Mounts []Mount `toml:"mounts"`
}

// Serializer holds the recognized response-serializer options.
type Serializer struct {
	PrettyPrint bool `toml:"pretty_print"`
}

// ProviderConfig describes one backing store. Kind selects
// "memory" or "filesystem"; Root is only meaningful for "filesystem".
type ProviderConfig struct {
	Kind string `toml:"kind"`
	Root string `toml:"root"`
}

// HTTP holds the listener and routing options for cmd/webdavd.
type HTTP struct {
	Addr       string `toml:"addr"`
	DAVPrefix  string `toml:"dav_prefix"`
	EnableLogs bool   `toml:"enable_logs"`
}

// Config is the complete decoded configuration file.
type Config struct {
	HTTP        HTTP                      `toml:"http"`
	LockManager LockManager               `toml:"lock_manager"`
	Distributor Distributor               `toml:"distributor"`
	Serializer  Serializer                `toml:"serializer"`
	Providers   map[string]ProviderConfig `toml:"providers"`
}

// Default returns a Config usable without any file: a single memory
// provider mounted at "/".
func Default() Config {
	return Config{
		HTTP: HTTP{Addr: ":8080", DAVPrefix: "/"},
		LockManager: LockManager{
			MaxTimeoutSeconds:     300,
			DefaultTimeoutSeconds: 60,
			SweepIntervalMS:       1000,
		},
		Distributor: Distributor{
			Mounts: []Mount{{Prefix: "/", Provider: "root"}},
		},
		Providers: map[string]ProviderConfig{
			"root": {Kind: "memory"},
		},
	}
}

// Load decodes a TOML file at path into a Config seeded with Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
