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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/sentry"
)

const (
	// Component Labels.
	ComponentStore    = "store"
	ComponentRowCache = "row_cache"
	ComponentSheets   = "sheets"
	ComponentAPI      = "api"

	// Cache results.
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "rental"
	subsystem = "core"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of document store operations by collection, operation and result",
		},
		[]string{"collection", "operation", "result"},
	)

	storeOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of document store operations in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collection", "operation"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "row_cache_requests_total",
			Help:      "Row cache lookups by collection and result (hit/miss)",
		},
		[]string{"collection", "result"},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "row_cache_invalidations_total",
			Help:      "Row cache invalidations by collection",
		},
		[]string{"collection"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_retries_total",
			Help:      "Retries of remote store calls after rate-limit or server errors",
		},
		[]string{"operation"},
	)

	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_calls_total",
			Help:      "Calls made to the remote spreadsheet backend by operation",
		},
		[]string{"backend", "operation"},
	)
)

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, logger.For("metrics"))
		}
	}()

	return server
}

// IncErrorCountAndLog increments the error counter for a component and logs a debug message if a logger is provided.
func IncErrorCountAndLog(component, instance string, err error, logger *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if logger != nil {
		logger.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// ObserveStoreOp records one document store operation.
func ObserveStoreOp(collection, operation string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	storeOpsTotal.WithLabelValues(collection, operation, result).Inc()
	storeOpsDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordCacheLookup counts a row cache hit or miss.
func RecordCacheLookup(collection string, hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}

	cacheRequests.WithLabelValues(collection, result).Inc()
}

// RecordCacheInvalidation counts an explicit invalidation.
func RecordCacheInvalidation(collection string) {
	cacheInvalidations.WithLabelValues(collection).Inc()
}

// IncRetry counts one retry of a remote call.
func IncRetry(operation string) {
	retriesTotal.WithLabelValues(operation).Inc()
}

// IncRemoteCall counts one call against a spreadsheet backend.
func IncRemoteCall(backend, operation string) {
	remoteCallsTotal.WithLabelValues(backend, operation).Inc()
}

// CacheLookups exposes the cache counter for a collection/result, used by tests.
func CacheLookups(collection string, hit bool) prometheus.Counter {
	result := CacheMiss
	if hit {
		result = CacheHit
	}

	return cacheRequests.WithLabelValues(collection, result)
}

// Retries exposes the retry counter for an operation, used by tests.
func Retries(operation string) prometheus.Counter {
	return retriesTotal.WithLabelValues(operation)
}
