// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package proxy

import (
	"encoding/json"
	"fmt"
	"os"
)

// rawConfig mirrors the two top-level keys of the policy document.
type rawConfig struct {
	BlackList []string         `json:"black-list"`
	Limited   map[string]int64 `json:"limited"`
}

// Config is the immutable, process-lifetime policy document consumed by the
// Classifier. It is built once at startup and never mutated afterward.
type Config struct {
	blockSet  map[string]struct{}
	limitMap  map[string]uint64
	BlockBody []byte
	LimitBody []byte
}

// LoadConfig reads the JSON policy document at path and the two static HTML
// response bodies, returning an immutable Config. Response bodies are read
// once, up front, and never re-read.
func LoadConfig(path, blockBodyPath, limitBodyPath string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var raw rawConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	blockBody, err := os.ReadFile(blockBodyPath)
	if err != nil {
		return nil, fmt.Errorf("read block body %s: %w", blockBodyPath, err)
	}
	limitBody, err := os.ReadFile(limitBodyPath)
	if err != nil {
		return nil, fmt.Errorf("read limit body %s: %w", limitBodyPath, err)
	}

	cfg := &Config{
		blockSet:  make(map[string]struct{}, len(raw.BlackList)),
		limitMap:  make(map[string]uint64, len(raw.Limited)),
		BlockBody: blockBody,
		LimitBody: limitBody,
	}
	for _, host := range raw.BlackList {
		cfg.blockSet[host] = struct{}{}
	}
	for host, quota := range raw.Limited {
		if quota <= 0 {
			return nil, fmt.Errorf("limited[%s]: quota must be positive, got %d", host, quota)
		}
		cfg.limitMap[host] = uint64(quota)
	}
	return cfg, nil
}

func (c *Config) isBlocked(initiator string) bool {
	_, ok := c.blockSet[initiator]
	return ok
}

func (c *Config) limitFor(initiator string) (uint64, bool) {
	q, ok := c.limitMap[initiator]
	return q, ok
}
