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

package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/config"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/models"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/rowcache"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets/google"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets/memory"
	"github.com/rentalhub/rental-core/pkg/persistence/sheetstore"
)

// app carries what the commands share: config location, output and the
// session factory.
type app struct {
	configPath  string
	out         io.Writer
	log         *zap.SugaredLogger
	openSession func(ctx context.Context, cfg config.StoreConfig) (sheets.Session, error)
}

func newApp(out io.Writer) *app {
	a := &app{
		configPath: constants.DefaultConfigPath,
		out:        out,
		log:        logger.For(logger.ComponentCLI),
	}
	a.openSession = a.defaultSession

	return a
}

func (a *app) defaultSession(ctx context.Context, cfg config.StoreConfig) (sheets.Session, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		a.log.Warn("Using the in-memory backend, data is lost on exit")

		return memory.New(), nil
	case config.BackendGoogle:
		return google.NewSession(ctx,
			google.Credentials{ClientEmail: cfg.ClientEmail, PrivateKey: cfg.PrivateKey},
			cfg.SpreadsheetID,
			google.WithLogger(logger.For(logger.ComponentSheets)),
		)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

func (a *app) loadConfig() (config.FullConfig, error) {
	return config.Load(a.configPath, logger.For(logger.ComponentConfig))
}

// openStore builds the document store described by cfg.
func (a *app) openStore(ctx context.Context, cfg config.FullConfig) (*sheetstore.Store, error) {
	session, err := a.openSession(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Store.Backend, err)
	}

	schemas, err := collectionSchemas(cfg.Store)
	if err != nil {
		return nil, err
	}

	retry := cfg.Store.Retry.Options()
	storeLog := logger.For(logger.ComponentStore)

	opts := []sheetstore.Option{
		sheetstore.WithRetryOptions(retry),
		sheetstore.WithEnsureHeadersOnUpdate(cfg.Store.EnsureHeadersOnUpdate),
		sheetstore.WithOptimisticLocking(cfg.Store.OptimisticLocking),
		sheetstore.WithLogger(storeLog),
		sheetstore.WithCache(rowcache.New(
			rowcache.WithTTL(cfg.Store.CacheTTL),
			rowcache.WithRetryOptions(retry),
			rowcache.WithLogger(logger.For(logger.ComponentRowCache)),
		)),
	}

	for name, schema := range schemas {
		opts = append(opts, sheetstore.WithCollectionSchema(name, schema))
	}

	return sheetstore.NewStore(session, opts...), nil
}

// collectionSchemas layers configured field kinds over the built-in models.
func collectionSchemas(cfg config.StoreConfig) (map[string]persistence.Schema, error) {
	configured, err := cfg.Schemas()
	if err != nil {
		return nil, err
	}

	merged := models.Schemas()
	for name, schema := range configured {
		if base, ok := merged[name]; ok {
			merged[name] = base.With(schema.Fields)
			continue
		}

		merged[name] = schema
	}

	return merged, nil
}

// servedCollections is every built-in collection plus the configured ones.
func servedCollections(cfg config.StoreConfig) []string {
	names := slices.Clone(models.AllCollections)
	for _, name := range slices.Sorted(maps.Keys(cfg.Collections)) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	return names
}
