// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Message: message})
}

// respondError writes the error body. err is logged, never echoed, unless
// message is built from it by the caller.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("API error")
	}
	respondJSON(w, status, models.StatusResponse{Status: models.StatusError, Message: message})
}
