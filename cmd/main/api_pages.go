package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CTAG07/pagetags/pkg/store"
	"github.com/CTAG07/pagetags/pkg/tagging"
)

// PagesAPI holds the dependencies for the page and tag API handlers.
type PagesAPI struct {
	app    *app
	logger *slog.Logger
}

// NewPagesAPI creates a new instance of the PagesAPI.
func NewPagesAPI(a *app, logger *slog.Logger) *PagesAPI {
	return &PagesAPI{app: a, logger: logger}
}

// RegisterRoutes sets up the routing for the page, tag and import/export endpoints.
func (p *PagesAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/pages", p.handlePages)
	mux.HandleFunc("/api/pages/", p.handlePageResource)
	mux.HandleFunc("/api/tags", p.handleTags)
	mux.HandleFunc("/api/export", p.handleExport)
	mux.HandleFunc("/api/import", p.handleImport)
	mux.HandleFunc("/api/sites", p.handleSites)
}

// TagsRequest is the expected JSON body for replacing the tags of a page.
type TagsRequest struct {
	Tags string `json:"tags"`
}

func (p *PagesAPI) handlePages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopePagesRead) {
			return
		}
		pages, err := p.app.store.ListPages(r.Context(), p.app.siteID())
		if err != nil {
			p.logger.Error("Failed to list pages", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list pages")
			return
		}
		respondWithJSON(w, http.StatusOK, pages)

	case http.MethodPost:
		if !requireScope(w, r, scopePagesWrite) {
			return
		}
		var page store.Page
		if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if page.Slug == "" {
			respondWithError(w, http.StatusBadRequest, "Field 'slug' is required")
			return
		}
		page.SiteID = p.app.siteID()
		created, err := p.app.store.CreatePage(r.Context(), page)
		if err != nil {
			p.respondStoreError(w, "create page", err)
			return
		}
		respondWithJSON(w, http.StatusCreated, created)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handlePageResource serves /api/pages/{slug}, /api/pages/{slug}/tags and
// /api/pages/{slug}/related.
func (p *PagesAPI) handlePageResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/pages/"), "/")
	slug, sub, _ := strings.Cut(rest, "/")
	if slug == "" {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch sub {
	case "":
		p.handlePage(w, r, slug)
	case "tags":
		p.handlePageTags(w, r, slug)
	case "related":
		p.handleRelated(w, r, slug)
	default:
		respondWithError(w, http.StatusNotFound, "Not Found")
	}
}

func (p *PagesAPI) handlePage(w http.ResponseWriter, r *http.Request, slug string) {
	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopePagesRead) {
			return
		}
		page, err := p.app.store.GetPage(r.Context(), p.app.siteID(), slug)
		if err != nil {
			p.respondStoreError(w, "get page", err)
			return
		}
		respondWithJSON(w, http.StatusOK, page)

	case http.MethodPut:
		if !requireScope(w, r, scopePagesWrite) {
			return
		}
		current, err := p.app.store.GetPage(r.Context(), p.app.siteID(), slug)
		if err != nil {
			p.respondStoreError(w, "get page", err)
			return
		}
		var page store.Page
		if err = json.NewDecoder(r.Body).Decode(&page); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		page.ID = current.ID
		page.SiteID = current.SiteID
		if page.Slug == "" {
			page.Slug = current.Slug
		}
		updated, err := p.app.store.UpdatePage(r.Context(), page)
		if err != nil {
			p.respondStoreError(w, "update page", err)
			return
		}
		respondWithJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if !requireScope(w, r, scopePagesWrite) {
			return
		}
		if err := p.app.store.DeletePage(r.Context(), p.app.siteID(), slug); err != nil {
			p.respondStoreError(w, "delete page", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (p *PagesAPI) handlePageTags(w http.ResponseWriter, r *http.Request, slug string) {
	if r.Method != http.MethodPut {
		w.Header().Set("Allow", "PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopePagesWrite) {
		return
	}

	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	page, err := p.app.store.GetPage(r.Context(), p.app.siteID(), slug)
	if err != nil {
		p.respondStoreError(w, "get page", err)
		return
	}
	page, err = p.app.store.SetPageTags(r.Context(), page.ID, req.Tags)
	if err != nil {
		p.respondStoreError(w, "set tags", err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (p *PagesAPI) handleRelated(w http.ResponseWriter, r *http.Request, slug string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopePagesRead) {
		return
	}

	limit := store.NoLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := p.app.store.GetPage(r.Context(), p.app.siteID(), slug)
	if err != nil {
		p.respondStoreError(w, "get page", err)
		return
	}
	related, err := p.app.store.RelatedPages(r.Context(), p.app.siteID(), page.ID, limit)
	if err != nil {
		p.respondStoreError(w, "query related pages", err)
		return
	}
	respondWithJSON(w, http.StatusOK, related)
}

func (p *PagesAPI) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopePagesRead) {
		return
	}
	counts, err := p.app.store.TagCounts(r.Context(), p.app.siteID())
	if err != nil {
		p.respondStoreError(w, "count tags", err)
		return
	}
	respondWithJSON(w, http.StatusOK, counts)
}

func (p *PagesAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopePagesRead) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="pages.json"`)
	if err := p.app.store.ExportPages(r.Context(), p.app.siteID(), w); err != nil {
		p.logger.Error("Export failed", "error", err)
	}
}

func (p *PagesAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopePagesWrite) {
		return
	}
	n, err := p.app.store.ImportPages(r.Context(), p.app.siteID(), r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// handleSites lists sites or adds one. Directives and the page server use
// the site configured in template_config.SiteID.
func (p *PagesAPI) handleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !requireScope(w, r, scopePagesRead) {
			return
		}
		sites, err := p.app.store.ListSites(r.Context())
		if err != nil {
			p.respondStoreError(w, "list sites", err)
			return
		}
		if sites == nil {
			sites = []store.Site{}
		}
		respondWithJSON(w, http.StatusOK, sites)

	case http.MethodPost:
		if !requireScope(w, r, scopeServerConfig) {
			return
		}
		var site store.Site
		if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if site.Domain == "" {
			respondWithError(w, http.StatusBadRequest, "Field 'domain' is required")
			return
		}
		created, err := p.app.store.CreateSite(r.Context(), store.Site{Domain: site.Domain, Name: site.Name})
		if err != nil {
			p.respondStoreError(w, "create site", err)
			return
		}
		respondWithJSON(w, http.StatusCreated, created)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// respondStoreError maps store errors to status codes.
func (p *PagesAPI) respondStoreError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, store.ErrPageNotFound):
		respondWithError(w, http.StatusNotFound, "Page not found")
	case errors.Is(err, store.ErrSiteNotFound):
		respondWithError(w, http.StatusNotFound, "Site not found")
	case errors.Is(err, tagging.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrSlugTaken):
		respondWithError(w, http.StatusConflict, "A page with this slug already exists")
	case errors.Is(err, store.ErrDomainTaken):
		respondWithError(w, http.StatusConflict, "A site with this domain already exists")
	default:
		p.logger.Error("Page API request failed", "action", action, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action))
	}
}
