package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_page (
    site_id       INTEGER NOT NULL,
    slug          TEXT    NOT NULL,
    total_hits    INTEGER NOT NULL DEFAULT 1,
    first_seen    INTEGER NOT NULL,
    last_seen     INTEGER NOT NULL,
    PRIMARY KEY (site_id, slug)
);
`

// maxTopPages caps the /api/stats/top_pages listing.
const maxTopPages = 100

// PageViews is the view count of one served page.
type PageViews struct {
	Slug      string    `json:"slug"`
	TotalHits int64     `json:"total_hits"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// StatsSummary provides a high-level overview of all collected views.
type StatsSummary struct {
	TotalViews  int64 `json:"total_views"`
	UniquePages int64 `json:"unique_pages"`
}

// StatsAPI records page views and serves them back.
type StatsAPI struct {
	db     *sql.DB
	app    *app
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(a *app, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     a.db,
		app:    a,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_pages", s.handleTopPages)
}

// RecordView counts one successful render of the page at slug. The root
// path is recorded under the empty slug.
func (s *StatsAPI) RecordView(ctx context.Context, siteID int64, slug string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO stats_page (site_id, slug, first_seen, last_seen) VALUES (?, ?, ?, ?)
        ON CONFLICT(site_id, slug) DO UPDATE SET total_hits = total_hits + 1, last_seen = excluded.last_seen
    `, siteID, slug, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert stats_page: %w", err)
	}
	return nil
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeStatsRead) {
		return
	}
	var summary StatsSummary
	err := s.db.QueryRowContext(r.Context(),
		"SELECT COALESCE(SUM(total_hits), 0), COUNT(*) FROM stats_page WHERE site_id = ?",
		s.app.siteID()).Scan(&summary.TotalViews, &summary.UniquePages)
	if err != nil {
		s.logger.Error("Failed to query stats summary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopPages(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeStatsRead) {
		return
	}
	limit := maxTopPages
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopPages {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Query parameter 'limit' must be between 1 and %d", maxTopPages))
			return
		}
		limit = n
	}

	rows, err := s.db.QueryContext(r.Context(), `
        SELECT slug, total_hits, first_seen, last_seen FROM stats_page
        WHERE site_id = ? ORDER BY total_hits DESC, slug LIMIT ?
    `, s.app.siteID(), limit)
	if err != nil {
		s.logger.Error("Failed to query top pages", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	results := []PageViews{}
	for rows.Next() {
		var v PageViews
		var first, last int64
		if err = rows.Scan(&v.Slug, &v.TotalHits, &first, &last); err != nil {
			s.logger.Error("Failed to scan top pages", "error", err)
			continue
		}
		v.FirstSeen = time.Unix(first, 0).UTC()
		v.LastSeen = time.Unix(last, 0).UTC()
		results = append(results, v)
	}
	respondWithJSON(w, http.StatusOK, results)
}
