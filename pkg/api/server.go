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

// Package api exposes the service over a small local HTTP interface, used
// by the operator frontend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ScalelabelProject/scalelabel-core/pkg/config"
	"github.com/ScalelabelProject/scalelabel-core/pkg/database"
	"github.com/ScalelabelProject/scalelabel-core/pkg/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// Env is what the API needs from the running service.
type Env interface {
	Status() service.StatusSnapshot
	Cuts() []database.CutItem
	SelectCut(name string) error
	Print(ctx context.Context) error
	PrintLog() ([]database.PrintLogEntry, error)
	Summary() (database.PrintLogSummary, error)
	RotateLog() (string, error)
	UpdatePrintSettings(ps service.PrintSettings) error
}

// NewRouter builds the HTTP routes. Split from Start for tests.
func NewRouter(env Env) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
	}))

	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, env.Status())
	})

	r.Get("/api/cuts", func(w http.ResponseWriter, _ *http.Request) {
		cuts := env.Cuts()
		if cuts == nil {
			cuts = []database.CutItem{}
		}
		respondJSON(w, http.StatusOK, cuts)
	})

	r.Post("/api/cuts/select", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			CutName string `json:"cut_name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := env.SelectCut(body.CutName); err != nil {
			respondError(w, errStatus(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, env.Status())
	})

	r.Post("/api/print", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Print(req.Context()); err != nil {
			respondError(w, errStatus(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, env.Status())
	})

	r.Get("/api/log", func(w http.ResponseWriter, _ *http.Request) {
		entries, err := env.PrintLog()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []database.PrintLogEntry{}
		}
		respondJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/log/summary", func(w http.ResponseWriter, _ *http.Request) {
		summary, err := env.Summary()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, summary)
	})

	r.Post("/api/log/rotate", func(w http.ResponseWriter, _ *http.Request) {
		archived, err := env.RotateLog()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"archived": archived})
	})

	r.Post("/api/autoprint", func(w http.ResponseWriter, req *http.Request) {
		// Absent fields stay as they are, so a client can flip one toggle
		// without knowing the others.
		var body struct {
			Enabled          *bool `json:"enabled"`
			StableIterations *int  `json:"stable_iterations"`
			CutPaper         *bool `json:"cut_paper"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := env.UpdatePrintSettings(service.PrintSettings{
			AutoPrint:        body.Enabled,
			StableIterations: body.StableIterations,
			CutPaper:         body.CutPaper,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, env.Status())
	})

	return r
}

// Start serves the API in the background. The returned server is shut
// down by the caller.
func Start(cfg *config.Instance, env Env) *http.Server {
	srv := &http.Server{
		Addr:              cfg.APIListen(),
		Handler:           NewRouter(env),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Msgf("API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("error starting http server")
		}
	}()

	return srv
}

// errStatus maps service errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownCut):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPrintInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrScaleOffline),
		errors.Is(err, service.ErrNoCutSelected),
		errors.Is(err, service.ErrBelowMinimumWeight):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
