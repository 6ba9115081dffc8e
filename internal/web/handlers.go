package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/regionmap/internal/core"
	"github.com/JonMunkholm/regionmap/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const geoJSONContentType = "application/geo+json"

// snapshot fetches the current snapshot or writes the error response.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*core.Snapshot, bool) {
	snap, err := s.service.Snapshot()
	if err != nil {
		respondError(w, r, err, 0)
		return nil, false
	}
	return snap, true
}

// regionParam returns the decoded {region} path value.
func regionParam(r *http.Request) string {
	raw := chi.URLParam(r, "region")
	if region, err := url.PathUnescape(raw); err == nil {
		return region
	}
	return raw
}

// notModified sets the snapshot ETag and reports whether the client copy is
// current.
func notModified(w http.ResponseWriter, r *http.Request, snap *core.Snapshot) bool {
	etag := `"` + snap.ID.String() + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", snap.LoadedAt.Format(http.TimeFormat))
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

// handleRegions serves every boundary feature with its billing annotation.
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok || notModified(w, r, snap) {
		return
	}

	body, err := core.FeatureCollection(snap.Boundaries)
	if err != nil {
		respondError(w, r, fmt.Errorf("render feature collection: %w", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", geoJSONContentType)
	w.Write(body)
}

// handleRegion serves one annotated boundary feature.
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	region := regionParam(r)
	boundary, found := snap.Boundary(region)
	if !found {
		logging.WithFields(r.Context(), "region", region).Debug("region not in boundaries")
		respondError(w, r, fmt.Errorf("region %q: %w", region, core.ErrUnknownRegion), 0)
		return
	}
	if notModified(w, r, snap) {
		return
	}

	body, err := boundary.Feature()
	if err != nil {
		respondError(w, r, fmt.Errorf("annotate region %q: %w", region, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", geoJSONContentType)
	w.Write(body)
}

type summaryResponse struct {
	core.Summary
	HasData bool `json:"hasData"`
}

// handleSummary renders the popup summary for a region as JSON (default),
// plain text or an HTML fragment. A region without data still gets a
// summary with zero totals.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	region := regionParam(r)
	format := strings.ToLower(r.URL.Query().Get("format"))
	summary := snap.Summarize(region)

	log := logging.WithFields(r.Context(), "region", region)
	log.Debug("summary served",
		"format", format,
		"categories", len(summary.Lines),
	)

	switch format {
	case "", "json":
		render.JSON(w, r, summaryResponse{Summary: summary, HasData: summary.HasData()})
	case "text", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(summary.String()))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := summaryPopup(summary).Render(r.Context(), w); err != nil {
			log.Error("render summary popup", "error", err)
		}
	default:
		respondError(w, r, fmt.Errorf("format %q: %w", format, core.ErrUnsupportedFormat), 0)
	}
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// handleCategories lists categories in first-seen order.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	categories := snap.Categories.Values()
	if categories == nil {
		categories = []string{}
	}
	render.JSON(w, r, categoriesResponse{Categories: categories})
}

type legendResponse struct {
	Classes []core.LegendClass `json:"classes"`
}

// handleLegend reports the two presence classes with region counts.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, legendResponse{Classes: snap.Legend()})
}

type warningsResponse struct {
	Total   int                      `json:"total"`
	ByKind  map[core.WarningKind]int `json:"byKind"`
	Entries []core.Warning           `json:"entries"`
}

type snapshotResponse struct {
	ID               string             `json:"id"`
	Source           string             `json:"source"`
	LoadedAt         time.Time          `json:"loadedAt"`
	DurationMS       int64              `json:"durationMs"`
	Trigger          core.ReloadTrigger `json:"trigger"`
	Rows             int                `json:"rows"`
	SourceBytes      int64              `json:"sourceBytes"`
	Regions          int                `json:"regions"`
	RegionsWithData  int                `json:"regionsWithData"`
	Categories       int                `json:"categories"`
	UnmatchedRegions []string           `json:"unmatchedRegions"`
	Warnings         warningsResponse   `json:"warnings"`
}

func newSnapshotResponse(snap *core.Snapshot) snapshotResponse {
	withData := 0
	for _, class := range snap.Legend() {
		if class.HasData {
			withData = class.Regions
		}
	}

	warnings := warningsResponse{
		Total:   snap.Warnings.Total,
		ByKind:  snap.Warnings.ByKind,
		Entries: snap.Warnings.Entries,
	}
	if warnings.ByKind == nil {
		warnings.ByKind = map[core.WarningKind]int{}
	}
	if warnings.Entries == nil {
		warnings.Entries = []core.Warning{}
	}

	unmatched := snap.UnmatchedRegions()
	if unmatched == nil {
		unmatched = []string{}
	}

	return snapshotResponse{
		ID:               snap.ID.String(),
		Source:           snap.Source,
		LoadedAt:         snap.LoadedAt,
		DurationMS:       snap.Duration.Milliseconds(),
		Trigger:          snap.Trigger,
		Rows:             snap.Rows,
		SourceBytes:      snap.SourceBytes,
		Regions:          len(snap.Boundaries),
		RegionsWithData:  withData,
		Categories:       snap.Categories.Len(),
		UnmatchedRegions: unmatched,
		Warnings:         warnings,
	}
}

// handleSnapshot describes the current snapshot and its retained warnings.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, newSnapshotResponse(snap))
}

// handleReload rebuilds the snapshot from the configured sources.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := core.ContextWithTrigger(r.Context(), core.ReloadTrigger{
		Reason:     core.TriggerAPI,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	snap, err := s.service.Reload(ctx)
	if err != nil {
		if errors.Is(err, core.ErrReloadBusy) {
			w.Header().Set("Retry-After", "5")
		}
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("snapshot reloaded via API",
		"id", snap.ID,
		"remote_addr", r.RemoteAddr,
	)
	render.JSON(w, r, newSnapshotResponse(snap))
}

type healthResponse struct {
	Status     string                   `json:"status"`
	SnapshotID string                   `json:"snapshotId,omitempty"`
	LoadedAt   *time.Time               `json:"loadedAt,omitempty"`
	Reloads    core.ReloadLimiterStatus `json:"reloads"`
}

// handleHealth is 200 once a snapshot is loaded and 503 before.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Reloads: s.service.Limiter().Status(),
	}

	snap, err := s.service.Snapshot()
	if err != nil {
		resp.Status = "loading"
		render.Status(r, http.StatusServiceUnavailable)
	} else {
		resp.SnapshotID = snap.ID.String()
		resp.LoadedAt = &snap.LoadedAt
	}
	render.JSON(w, r, resp)
}
