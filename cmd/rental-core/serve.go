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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rentalhub/rental-core/pkg/api"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/sentry"
	"github.com/rentalhub/rental-core/pkg/version"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the collections over the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	log := logger.For(logger.ComponentCore)

	cfg, err := a.loadConfig()
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %v", err)

		return err
	}

	sentry.InitSentry(version.GetAppVersion(), cfg.SentryDSN, true)

	log.Infow("Starting rental-core",
		"version", version.GetAppVersion(),
		"backend", cfg.Store.Backend,
		"cacheTTL", cfg.Store.CacheTTL,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to open store: %v", err)

		return err
	}

	server, err := api.NewServer(store, &api.Config{
		Port:        cfg.API.Port,
		Debug:       cfg.API.Debug,
		CORSOrigins: cfg.API.CORSOrigins,
		Collections: servedCollections(cfg.Store),
	}, logger.For(logger.ComponentAPI))
	if err != nil {
		return err
	}

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.MetricsPort))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
		}

		return server.Stop(shutdownCtx)
	})

	return g.Wait()
}
