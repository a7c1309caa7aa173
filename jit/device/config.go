// Copyright 2025 go-highway Authors
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

package device

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Environment variables read by CPUConfigFromEnv.
const (
	EnvWorkers      = "FUSEDSOFTMAX_WORKERS"
	EnvMemoryLimit  = "FUSEDSOFTMAX_MEMORY_LIMIT"
	EnvMaxTileWidth = "FUSEDSOFTMAX_MAX_TILE_WIDTH"
)

// DefaultMaxTileWidth is the widest tile the CPU backend compiles by
// default: 16M lanes, 64 MiB per float tile.
const DefaultMaxTileWidth = 1 << 24

// CPUConfig configures the CPU backend.
type CPUConfig struct {
	// Workers is the size of the program-instance pool; <= 0 uses GOMAXPROCS.
	Workers int

	// MemoryLimit caps live buffer bytes; 0 means unlimited.
	MemoryLimit int64

	// MaxTileWidth is the largest tile Compile accepts; 0 means
	// DefaultMaxTileWidth.
	MaxTileWidth int
}

// DefaultCPUConfig returns the configuration used when nothing is set.
func DefaultCPUConfig() CPUConfig {
	return CPUConfig{MaxTileWidth: DefaultMaxTileWidth}
}

// CPUConfigFromEnv returns DefaultCPUConfig with the FUSEDSOFTMAX_*
// environment overrides applied. Unset or empty variables keep the default.
func CPUConfigFromEnv() (CPUConfig, error) {
	cfg := DefaultCPUConfig()
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "parsing %s=%q", EnvWorkers, v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv(EnvMemoryLimit); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return cfg, errors.Errorf("parsing %s=%q: want a non-negative byte count", EnvMemoryLimit, v)
		}
		cfg.MemoryLimit = n
	}
	if v := os.Getenv(EnvMaxTileWidth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, errors.Errorf("parsing %s=%q: want a positive lane count", EnvMaxTileWidth, v)
		}
		cfg.MaxTileWidth = n
	}
	return cfg, nil
}
