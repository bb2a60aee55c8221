// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
)

// embyImageKinds are probed in order.
var embyImageKinds = []string{"Primary", "Backdrop"}

// EmbyImageURL builds the resized artwork URL for an item.
func EmbyImageURL(base, itemID, kind string) string {
	return fmt.Sprintf("%s/Items/%s/Images/%s?fillHeight=600&fillWidth=400&quality=90",
		base, url.PathEscape(itemID), kind)
}

// localImage returns the first Emby artwork URL that answers HEAD with 200.
func (r *ImageResolver) localImage(ctx context.Context, item *models.MediaItem, opts ImageOptions) string {
	if opts.EmbyURL == "" || item.ID == "" {
		metrics.RecordEnrichment(sourceEmby, "skipped", 0)
		return ""
	}

	start := time.Now()
	for _, kind := range embyImageKinds {
		candidate := EmbyImageURL(opts.EmbyURL, item.ID, kind)
		if r.imageExists(ctx, candidate) {
			metrics.RecordEnrichment(sourceEmby, "hit", time.Since(start))
			return candidate
		}
	}
	metrics.RecordEnrichment(sourceEmby, "miss", time.Since(start))
	logging.Ctx(ctx).Debug().Str("item_id", item.ID).Msg("No Emby artwork found")
	return ""
}

func (r *ImageResolver) imageExists(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := r.probe.Do(req)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("url", logging.RedactURL(target)).Msg("Emby image probe failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
