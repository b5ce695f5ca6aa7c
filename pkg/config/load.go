// Copyright 2025 UMH Systems GmbH
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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/env"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/sentry"
)

// Load reads the YAML file at path, applies environment overrides and validates
// the result.
//
// Order of precedence (highest to lowest):
// 1. Environment variables (SPREADSHEET_ID, GOOGLE_CLIENT_EMAIL, GOOGLE_PRIVATE_KEY, ...)
// 2. Values in the config file
// 3. Default values
//
// A missing file is not an error: the service can be configured from the
// environment alone. Invalid configuration is a permanent error.
func Load(path string, log *zap.SugaredLogger) (FullConfig, error) {
	log = logger.OrNop(log)

	cfg, err := ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infow("Config file not found, using defaults and environment", "path", path)

		cfg, err = Default(), nil
	}

	if err != nil {
		return FullConfig{}, err
	}

	ApplyEnvOverrides(&cfg, log)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, backoff.NewPermanentError(err)
	}

	return cfg, nil
}

// ReadFile parses the YAML file at path on top of Default.
func ReadFile(path string) (FullConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FullConfig{}, err
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (FullConfig, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// an empty document leaves the defaults untouched
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FullConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.normalize()

	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg FullConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// ApplyEnvOverrides replaces config values with non-empty environment variables.
func ApplyEnvOverrides(cfg *FullConfig, log *zap.SugaredLogger) {
	log = logger.OrNop(log)

	str := func(key string, dst *string) {
		v, err := env.GetAsString(key, false, *dst)
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %v", key, err)

			return
		}

		*dst = v
	}

	str("STORE_BACKEND", &cfg.Store.Backend)
	str("SPREADSHEET_ID", &cfg.Store.SpreadsheetID)
	str("GOOGLE_CLIENT_EMAIL", &cfg.Store.ClientEmail)
	str("GOOGLE_PRIVATE_KEY", &cfg.Store.PrivateKey)
	str("SENTRY_DSN", &cfg.SentryDSN)

	if ttl, err := env.GetAsDuration("CACHE_TTL", false, cfg.Store.CacheTTL); err == nil {
		cfg.Store.CacheTTL = ttl
	}

	if v, err := env.GetAsBool("ENSURE_HEADERS_ON_UPDATE", false, cfg.Store.EnsureHeadersOnUpdate); err == nil {
		cfg.Store.EnsureHeadersOnUpdate = v
	}

	if v, err := env.GetAsBool("OPTIMISTIC_LOCKING", false, cfg.Store.OptimisticLocking); err == nil {
		cfg.Store.OptimisticLocking = v
	}

	if port, err := env.GetAsInt("API_PORT", false, cfg.API.Port); err == nil {
		cfg.API.Port = port
	}

	if port, err := env.GetAsInt("METRICS_PORT", false, cfg.MetricsPort); err == nil {
		cfg.MetricsPort = port
	}
}
