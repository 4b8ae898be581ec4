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

// Command webdavd wires a webdavcore.Handler into a runnable HTTP
// server: a chi router mounts the DAV handler under a configurable
// prefix alongside a /healthz route, and a TOML file configures the
// lock manager and the distributor's provider mounts.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nmvc/webdavcore"
	"github.com/nmvc/webdavcore/config"
	"github.com/nmvc/webdavcore/distributor"
	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/fsprovider"
	"github.com/nmvc/webdavcore/internal/logctx"
	"github.com/nmvc/webdavcore/lockmgr"
	"github.com/nmvc/webdavcore/memprovider"
	"github.com/nmvc/webdavcore/provider"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults to a single in-memory mount at /)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		cfg = loaded
	}

	dist, closers, err := buildDistributor(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build distributor")
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	locks := lockmgr.New(lockmgr.Config{
		MaxTimeout:     time.Duration(cfg.LockManager.MaxTimeoutSeconds) * time.Second,
		DefaultTimeout: time.Duration(cfg.LockManager.DefaultTimeoutSeconds) * time.Second,
		SweepInterval:  time.Duration(cfg.LockManager.SweepIntervalMS) * time.Millisecond,
	})
	defer locks.Close()

	handler := webdavcore.New(dist, locks)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logctx.WithLogger(req.Context(), &logger)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	prefix := cfg.HTTP.DAVPrefix
	if prefix == "" {
		prefix = "/"
	}
	r.Mount(prefix, http.StripPrefix(stripPrefixPath(prefix), handler))

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	logger.Info().Str("addr", addr).Str("dav_prefix", prefix).Msg("starting webdavd")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

// stripPrefixPath turns a chi mount prefix into the prefix
// http.StripPrefix should remove; chi's Mount always receives the full
// prefix itself, so "/" (no real prefix) strips nothing.
func stripPrefixPath(prefix string) string {
	if prefix == "/" {
		return ""
	}
	return prefix
}

// buildDistributor constructs every configured provider and mounts it
// at its configured prefix. Callers must Close the returned providers
// (currently only fsprovider.Disk needs it) once the server stops.
func buildDistributor(cfg config.Config) (*distributor.Distributor, []closer, error) {
	dist := distributor.New()
	var closers []closer

	providers := make(map[string]provider.Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		switch pc.Kind {
		case "memory", "":
			providers[name] = memprovider.New()
		case "filesystem":
			if pc.Root == "" {
				return nil, nil, fmt.Errorf("provider %q: filesystem kind requires root", name)
			}
			disk, err := fsprovider.New(pc.Root)
			if err != nil {
				return nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			providers[name] = disk
			closers = append(closers, disk)
		default:
			return nil, nil, fmt.Errorf("provider %q: unknown kind %q", name, pc.Kind)
		}
	}

	for _, m := range cfg.Distributor.Mounts {
		prov, ok := providers[m.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("mount %q: provider %q not configured", m.Prefix, m.Provider)
		}
		p, err := dpath.New(m.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("mount %q: %w", m.Prefix, err)
		}
		dist.Mount(p, prov)
	}

	return dist, closers, nil
}

type closer interface {
	Close() error
}
