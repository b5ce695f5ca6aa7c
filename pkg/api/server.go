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

// Package api exposes the document store over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/persistence/sheetstore"
	"github.com/rentalhub/rental-core/pkg/version"
)

// Config configures the HTTP server.
type Config struct {
	Port        int
	Debug       bool
	CORSOrigins []string
	// Collections is the allowlist of collections served. Others are 404.
	Collections []string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if len(c.Collections) == 0 {
		return errors.New("no collections to serve")
	}

	return nil
}

// Server wraps the HTTP server with routing and lifecycle management.
type Server struct {
	store  *sheetstore.Store
	config *Config
	logger *zap.SugaredLogger
	server *http.Server
}

// NewServer creates a server over store.
func NewServer(store *sheetstore.Store, config *Config, log *zap.SugaredLogger) (*Server, error) {
	if config == nil {
		return nil, errors.New("api config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	if log == nil {
		log = logger.For(logger.ComponentAPI)
	}

	return &Server{store: store, config: config, logger: log}, nil
}

// Handler returns the complete HTTP handler, compression included.
func (s *Server) Handler() http.Handler {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	if len(s.config.CORSOrigins) > 0 {
		router.Use(s.corsMiddleware())
	}

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	v1.GET("/collections", s.listCollections)

	coll := v1.Group("/collections/:name", s.requireCollection)
	coll.GET("", s.find)
	coll.POST("", s.create)
	coll.GET("/count", s.count)
	coll.POST("/aggregate", s.aggregate)
	coll.GET("/:id", s.get)
	coll.PATCH("/:id", s.update)
	coll.DELETE("/:id", s.delete)

	return gzhttp.GzipHandler(router)
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Infow("Starting API server",
		"port", s.config.Port,
		"debug", s.config.Debug,
		"collections", s.config.Collections,
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Stopping API server")

	return s.server.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "version": version.GetAppVersion()})
}

func (s *Server) listCollections(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"collections": s.config.Collections})
}

// requireCollection rejects collections outside the allowlist, so requests
// cannot create arbitrary worksheets.
func (s *Server) requireCollection(c *gin.Context) {
	if !slices.Contains(s.config.Collections, c.Param("name")) {
		writeError(c, http.StatusNotFound, fmt.Sprintf("unknown collection %q", c.Param("name")))
		c.Abort()

		return
	}

	c.Next()
}

// loggingMiddleware provides request logging.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.logger.Warnw("API request failed", fields...)
		case s.config.Debug:
			s.logger.Infow("API request", fields...)
		}
	}
}

// corsMiddleware provides CORS support.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				c.Header("Access-Control-Allow-Origin", allowedOrigin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

				break
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)

			return
		}

		c.Next()
	}
}
