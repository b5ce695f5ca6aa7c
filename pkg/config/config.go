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
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/persistence"
)

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store backends.
const (
	BackendGoogle = "google"
	BackendMemory = "memory"
)

// FullConfig is the service configuration as stored in config.yaml.
type FullConfig struct {
	Store       StoreConfig `yaml:"store"`
	API         APIConfig   `yaml:"api"`
	MetricsPort int         `yaml:"metricsPort"`
	SentryDSN   string      `yaml:"sentryDSN,omitempty"`
}

// StoreConfig configures the document store and its spreadsheet.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	SpreadsheetID string `yaml:"spreadsheetId,omitempty"`
	ClientEmail   string `yaml:"clientEmail,omitempty"`
	PrivateKey    string `yaml:"privateKey,omitempty"`

	CacheTTL              time.Duration `yaml:"cacheTTL"`
	EnsureHeadersOnUpdate bool          `yaml:"ensureHeadersOnUpdate"`
	OptimisticLocking     bool          `yaml:"optimisticLocking"`

	Retry       RetryConfig                 `yaml:"retry"`
	Collections map[string]CollectionConfig `yaml:"collections,omitempty"`
}

// RetryConfig mirrors backoff.RetryOptions without the callback.
type RetryConfig struct {
	MaxRetries          int           `yaml:"maxRetries"`
	InitialDelay        time.Duration `yaml:"initialDelay"`
	Multiplier          float64       `yaml:"multiplier"`
	MaxDelay            time.Duration `yaml:"maxDelay"`
	RandomizationFactor float64       `yaml:"randomizationFactor"`
}

// CollectionConfig declares field kinds ("text", "phone", "json", ...) for one collection.
type CollectionConfig struct {
	Fields map[string]string `yaml:"fields,omitempty"`
}

// APIConfig configures the REST server.
type APIConfig struct {
	Port        int      `yaml:"port"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`
}

// Default returns the configuration used for unset values.
func Default() FullConfig {
	def := backoff.DefaultRetryOptions()

	return FullConfig{
		Store: StoreConfig{
			Backend:  BackendGoogle,
			CacheTTL: constants.RowCacheTTL,
			Retry: RetryConfig{
				MaxRetries:          def.MaxRetries,
				InitialDelay:        def.InitialDelay,
				Multiplier:          def.Multiplier,
				MaxDelay:            def.MaxDelay,
				RandomizationFactor: def.RandomizationFactor,
			},
		},
		API:         APIConfig{Port: constants.DefaultAPIPort},
		MetricsPort: constants.DefaultMetricsPort,
	}
}

// Clone creates a deep copy of FullConfig.
func (c FullConfig) Clone() (FullConfig, error) {
	clone := FullConfig{}
	if err := deepcopy.Copy(&clone, &c); err != nil {
		return FullConfig{}, fmt.Errorf("failed to copy config: %w", err)
	}

	return clone, nil
}

// Redacted returns a copy with credentials masked, for printing.
func (c FullConfig) Redacted() (FullConfig, error) {
	clone, err := c.Clone()
	if err != nil {
		return FullConfig{}, err
	}

	if clone.Store.PrivateKey != "" {
		clone.Store.PrivateKey = "<redacted>"
	}

	if clone.SentryDSN != "" {
		clone.SentryDSN = "<redacted>"
	}

	return clone, nil
}

// Options converts the retry settings for pkg/backoff.
func (r RetryConfig) Options() backoff.RetryOptions {
	return backoff.RetryOptions{
		MaxRetries:          r.MaxRetries,
		InitialDelay:        r.InitialDelay,
		Multiplier:          r.Multiplier,
		MaxDelay:            r.MaxDelay,
		RandomizationFactor: r.RandomizationFactor,
	}
}

// Schemas returns the field kinds of every configured collection on top of
// persistence.DefaultSchema.
func (s StoreConfig) Schemas() (map[string]persistence.Schema, error) {
	schemas := make(map[string]persistence.Schema, len(s.Collections))

	for name, coll := range s.Collections {
		kinds := make(map[string]persistence.FieldKind, len(coll.Fields))

		for field, raw := range coll.Fields {
			kind, err := persistence.ParseFieldKind(raw)
			if err != nil {
				return nil, fmt.Errorf("collection %q field %q: %w", name, field, err)
			}

			kinds[field] = kind
		}

		schemas[name] = persistence.DefaultSchema().With(kinds)
	}

	return schemas, nil
}

// normalize cleans values that commonly arrive mangled from env files.
func (c *FullConfig) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.SpreadsheetID = strings.TrimSpace(c.Store.SpreadsheetID)
	c.Store.ClientEmail = strings.TrimSpace(c.Store.ClientEmail)

	// keys pasted into env files carry literal \n sequences
	c.Store.PrivateKey = strings.ReplaceAll(c.Store.PrivateKey, `\n`, "\n")
}

// Validate checks the configuration and reports every problem at once.
func (c FullConfig) Validate() error {
	var problems []string

	switch c.Store.Backend {
	case BackendGoogle:
		if c.Store.SpreadsheetID == "" {
			problems = append(problems, "store.spreadsheetId is required for the google backend")
		}

		if c.Store.ClientEmail == "" {
			problems = append(problems, "store.clientEmail is required for the google backend")
		}

		if c.Store.PrivateKey == "" {
			problems = append(problems, "store.privateKey is required for the google backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("store.backend %q is not one of %q, %q", c.Store.Backend, BackendGoogle, BackendMemory))
	}

	if c.Store.CacheTTL <= 0 {
		problems = append(problems, "store.cacheTTL must be positive")
	}

	if c.Store.Retry.MaxRetries < 0 {
		problems = append(problems, "store.retry.maxRetries must not be negative")
	}

	if c.Store.Retry.RandomizationFactor < 0 || c.Store.Retry.RandomizationFactor >= 1 {
		problems = append(problems, "store.retry.randomizationFactor must be in [0, 1)")
	}

	if _, err := c.Store.Schemas(); err != nil {
		problems = append(problems, err.Error())
	}

	for name, port := range map[string]int{"api.port": c.API.Port, "metricsPort": c.MetricsPort} {
		if port <= 0 || port > 65535 {
			problems = append(problems, fmt.Sprintf("%s %d is not a valid port", name, port))
		}
	}

	if c.API.Port == c.MetricsPort {
		problems = append(problems, "api.port and metricsPort must differ")
	}

	if len(problems) == 0 {
		return nil
	}

	sort.Strings(problems)

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
