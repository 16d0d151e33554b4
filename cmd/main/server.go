package main

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CTAG07/pagetags/pkg/store"
	"github.com/CTAG07/pagetags/pkg/templating"
)

type Server struct {
	app         *app
	logger      *slog.Logger
	tm          *templating.TemplateManager
	metrics     *Metrics
	authAPI     *AuthAPI
	templateAPI *TemplateAPI
	pagesAPI    *PagesAPI
	serverAPI   *ServerAPI
	statsAPI    *StatsAPI
	pageMux     *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(a *app, tm *templating.TemplateManager, actionChan chan string) (*Server, error) {
	metrics := NewMetrics(tm)

	// create object, register routes to the mux, and return it
	server := &Server{
		app:         a,
		logger:      a.logger,
		tm:          tm,
		metrics:     metrics,
		authAPI:     NewAuthAPI(a.db, a.logger),
		templateAPI: NewTemplateAPI(tm, a, a.logger),
		pagesAPI:    NewPagesAPI(a, a.logger),
		serverAPI:   NewServerAPI(a.cm, actionChan, a.logger),
		statsAPI:    NewStatsAPI(a, a.logger),
		pageMux:     http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()
	server.authAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.pagesAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", metrics.InstrumentAPI(authedAPI))
	server.apiMux.Handle("/metrics", metrics.Handler())

	server.pageMux.HandleFunc("/favicon.ico", handleFavicon)
	server.pageMux.HandleFunc("/", server.handlePage)

	return server, nil
}

// handlePage renders the page whose slug is the request path with the page
// template, or the index template for the root path. Unknown and unpublished
// pages are not found.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	config := s.app.cm.Get()
	slug := strings.Trim(r.URL.Path, "/")
	templateName := config.Server.PageTemplate
	vars := map[string]any{"path": r.URL.Path}

	if slug == "" {
		templateName = config.Server.IndexTemplate
	} else {
		page, err := s.app.store.GetPage(r.Context(), s.app.siteID(), slug)
		if errors.Is(err, store.ErrPageNotFound) || (err == nil && !page.Published()) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.logger.Error("Failed to look up page", "slug", slug, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		vars["page"] = page
	}

	if !s.tm.HasTemplate(templateName) {
		s.logger.Warn("Template is not loaded", "template", templateName)
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	start := time.Now()
	err := s.tm.Execute(r.Context(), &buf, templateName, vars)
	s.metrics.ObserveRender(templateName, start, err)
	if err != nil {
		s.logger.Error("Failed to execute template", "template", templateName, "slug", slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err = s.statsAPI.RecordView(r.Context(), s.app.siteID(), slug); err != nil {
		s.logger.Warn("Failed to record page view", "slug", slug, "error", err)
	}

	s.logger.Debug("Serving page", "template", templateName, "slug", slug, "remote_addr", r.RemoteAddr)
	for k, v := range config.Server.Headers {
		w.Header().Set(k, v)
	}
	_, _ = buf.WriteTo(w)
}

// handleFavicon returns no content, so browsers asking for a favicon do not
// trigger a page lookup.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
