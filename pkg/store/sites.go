package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// CreateSite inserts a new site and returns it with its assigned id.
func (s *Store) CreateSite(ctx context.Context, site Site) (Site, error) {
	if site.Domain == "" {
		return Site{}, errors.New("site domain must not be empty")
	}
	if site.Name == "" {
		site.Name = site.Domain
	}
	var existing int64
	err := s.db.QueryRowContext(ctx, `SELECT site_id FROM sites WHERE domain = ?`, site.Domain).Scan(&existing)
	if err == nil {
		return Site{}, fmt.Errorf("%w: '%s'", ErrDomainTaken, site.Domain)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Site{}, err
	}
	if err = s.stmtInsertSite.QueryRowContext(ctx, site.Domain, site.Name).Scan(&site.ID); err != nil {
		return Site{}, fmt.Errorf("failed to insert site '%s': %w", site.Domain, err)
	}
	s.logger.InfoContext(ctx, "Site created",
		slog.Int64("site_id", site.ID),
		slog.String("domain", site.Domain),
	)
	return site, nil
}

// GetSite retrieves a site by id.
func (s *Store) GetSite(ctx context.Context, id int64) (Site, error) {
	site := Site{ID: id}
	err := s.stmtGetSite.QueryRowContext(ctx, id).Scan(&site.ID, &site.Domain, &site.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrSiteNotFound
	}
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

// ListSites returns every site ordered by id.
func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := s.stmtListSites.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var sites []Site
	for rows.Next() {
		var site Site
		if err = rows.Scan(&site.ID, &site.Domain, &site.Name); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
