// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package models

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusHealthy = "healthy"
)

// StatusResponse is the body of /webhook and /reload_config responses.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is the body of /healthcheck.
type HealthResponse struct {
	Status      string `json:"status"`
	TimeUTC     string `json:"time_utc"`
	TimeBeijing string `json:"time_beijing"`
}
