// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

// api-curl-link HTTP server
//
// Serves the link extraction endpoint at "/" and, when enabled, the MCP
// transport at "/mcp". Settings come from CURLLINK_* environment variables,
// optionally loaded from .env.local and .env.
//
// Usage:
//
//	api-curl-link [flags]
//
// Flags:
//
//	-host string    Host to bind the server to (overrides CURLLINK_HOST)
//	-port int       Port to run the server on (overrides CURLLINK_PORT)
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/daishir0/api-curl-link/internal/config"
	"github.com/daishir0/api-curl-link/internal/logging"
	"github.com/daishir0/api-curl-link/internal/mcp"
	"github.com/daishir0/api-curl-link/internal/metrics"
	"github.com/daishir0/api-curl-link/internal/server"
	"github.com/daishir0/api-curl-link/internal/store"
	"github.com/daishir0/api-curl-link/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "Port to run the HTTP server on")
	host := flag.String("host", "", "Host to bind the HTTP server to")
	flag.Parse()

	bootLog := logging.NewLoggerWithService(config.GetLogLevel(), os.Stderr)
	config.LoadEnv(bootLog)

	cfg, err := config.FromEnv()
	if err != nil {
		bootLog.WithError(err).Fatal("Invalid configuration")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "host":
			cfg.Host = *host
		}
	})

	logger, closer, err := logging.Open(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		bootLog.WithError(err).Fatal("Failed to open log file")
	}
	defer closer.Close()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	fetcher := curllink.NewFetcher(cfg.FetchConfig())
	if err := fetcher.Limits(cfg.FetchLimits); err != nil {
		logger.WithError(err).Fatal("Invalid fetch limits")
	}

	artifacts := storage.NewArtifacts(afero.NewOsFs(), cfg.CacheDir)
	if err := artifacts.Fs().MkdirAll(cfg.CacheDir, 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create cache directory")
	}
	index, err := openIndex(cfg, artifacts)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open cache index")
	}
	defer index.Close()

	collector := metrics.NewCollector()
	coreApp := app.NewApp(app.Deps{
		Fetcher:   fetcher,
		Index:     index,
		Artifacts: artifacts,
		Logger:    logger,
		Emitter:   collector,
	})

	opts := server.Options{Metrics: collector}
	if cfg.MCPEnabled {
		opts.MCP = mcp.NewMCPServer(coreApp, logger).Handler()
	}
	srv := server.NewServer(coreApp, cfg, logger, opts)

	// Configure HTTP server with production-ready settings; the write
	// timeout leaves room for a full fetch
	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    addr,
			"backend": cfg.CacheBackend,
			"cache":   cfg.CacheDir,
			"mcp":     cfg.MCPEnabled,
		}).Info("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return
	}

	logger.Info("Server exited gracefully")
}

func openIndex(cfg *config.Config, artifacts *storage.Artifacts) (storage.Index, error) {
	switch cfg.CacheBackend {
	case config.BackendJSON:
		return storage.NewFileIndex(artifacts, cfg.Policy()), nil
	case config.BackendSQLite:
		st, err := store.NewStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteIndex(st, artifacts, cfg.Policy()), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}
