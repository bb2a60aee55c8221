// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embynotify/internal/logging"
)

type tmdbSearchResponse struct {
	Results []tmdbSearchResult `json:"results"`
}

type tmdbSearchResult struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

type tmdbDetails struct {
	PosterPath string `json:"poster_path"`
}

// searchTV returns the most popular TV series matching name, or 0 when
// nothing matched. Ties keep the earliest result.
func (r *ImageResolver) searchTV(ctx context.Context, opts ImageOptions, name, year string) (int64, error) {
	params := url.Values{
		"api_key":       {opts.TMDBKey},
		"query":         {name},
		"language":      {"zh-CN"},
		"include_adult": {"false"},
	}
	if year != "" {
		params.Set("first_air_date_year", year)
	}

	var resp tmdbSearchResponse
	if err := r.tmdbGet(ctx, opts.TMDBURL+"/3/search/tv", params, &resp); err != nil {
		return 0, err
	}
	return mostPopular(resp.Results), nil
}

func mostPopular(results []tmdbSearchResult) int64 {
	if len(results) == 0 {
		return 0
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Popularity > best.Popularity {
			best = r
		}
	}
	return best.ID
}

// poster fetches /3/{kind}/{id} and returns its poster_path ("" if none).
func (r *ImageResolver) poster(ctx context.Context, opts ImageOptions, kind, id string) (string, error) {
	params := url.Values{"api_key": {opts.TMDBKey}}
	var details tmdbDetails
	if err := r.tmdbGet(ctx, opts.TMDBURL+"/3/"+kind+"/"+url.PathEscape(id), params, &details); err != nil {
		return "", err
	}
	return details.PosterPath, nil
}

// tmdbGet issues one GET through the TMDB breaker and decodes the body. A 404
// leaves out untouched and is not a breaker failure.
func (r *ImageResolver) tmdbGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	_, err := Execute(r.breaker, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, TMDBTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.tmdb.Do(req)
		if err != nil {
			// The transport error embeds the URL and therefore the api key.
			return struct{}{}, fmt.Errorf("request to %s failed: %w", endpoint, unwrapURLError(err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return struct{}{}, nil
		case resp.StatusCode != http.StatusOK:
			return struct{}{}, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
		return struct{}{}, nil
	})
	return err
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func logTMDBFailure(ctx context.Context, err error, what string) {
	logging.CtxWarn(ctx).Err(err).Str("lookup", what).Msg("TMDB lookup failed, using Emby image")
}
