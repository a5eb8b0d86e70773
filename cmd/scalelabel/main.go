// Scalelabel Core
// Copyright (c) 2026 The Scalelabel Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Scalelabel Core.
//
// Scalelabel Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Scalelabel Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Scalelabel Core.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ScalelabelProject/scalelabel-core/pkg/api"
	"github.com/ScalelabelProject/scalelabel-core/pkg/config"
	"github.com/ScalelabelProject/scalelabel-core/pkg/helpers"
	"github.com/ScalelabelProject/scalelabel-core/pkg/service"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	daemonMode := flag.Bool(
		"daemon",
		false,
		"log to stderr as well as the log file",
	)
	debug := flag.Bool(
		"debug",
		false,
		"enable debug logging",
	)
	configDir := flag.String(
		"config-dir",
		"",
		"override the config directory",
	)
	dataDir := flag.String(
		"data-dir",
		"",
		"override the data directory",
	)
	flag.Parse()

	cfgDir := *configDir
	if cfgDir == "" {
		cfgDir = config.DefaultConfigDir()
	}
	dDir := *dataDir
	if dDir == "" {
		dDir = config.DefaultDataDir()
	}

	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}
	if err := helpers.InitLogging(filepath.Join(dDir, config.LogArchiveDir), logWriters); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.NewConfig(cfgDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDebugLogging(cfg.DebugLogging() || *debug)

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	svc, err := service.Start(cfg, dDir)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	defer svc.Stop()

	srv := api.Start(cfg, svc)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("shutting down")

	return nil
}
