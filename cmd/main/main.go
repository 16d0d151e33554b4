package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/CTAG07/pagetags/pkg/store"
	"github.com/CTAG07/pagetags/pkg/templating"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string           `default:"./config.json" help:"Path to the JSON configuration file." short:"c" type:"path"`
	LogLevel string           `help:"Override the configured log level (debug, info, warn, error)." name:"log-level"`
	Version  kong.VersionFlag `help:"Print version information and quit."`
}

// CLI is the top-level command-line interface.
type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the page server and the JSON API (default)."`
	Render RenderCmd `cmd:"" help:"Render a template to stdout."`
	Import ImportCmd `cmd:"" help:"Import pages from a YAML or JSON file."`
	Export ExportCmd `cmd:"" help:"Export all pages of the configured site as JSON."`
	Tag    TagCmd    `cmd:"" help:"Replace the tags of a page."`
}

func main() {
	var cli CLI
	ktx := kong.Parse(&cli,
		kong.Name("pagetags"),
		kong.Description("Tagged page server with tag-driven template directives."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{"version": fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)},
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)
	if err := ktx.Run(&cli.Globals); err != nil {
		slog.Error("Command failed", "command", ktx.Command(), "error", err)
		os.Exit(1)
	}
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app bundles what every command needs: configuration, logger and the open
// page store.
type app struct {
	cm     *ConfigManager
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store
}

// openApp loads the configuration, builds the logger and opens the database.
// Log output goes to stderr so that render and export can write to stdout.
func openApp(g *Globals) (*app, error) {
	cm, err := NewConfigManager(g.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	level := config.Server.LogLevel
	if g.LogLevel != "" {
		level = g.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	cm.SetLogger(logger)

	if err = os.MkdirAll(filepath.Dir(config.Server.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup page schema: %w", err)
	}
	if err = setupAuthSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup auth schema: %w", err)
	}
	if err = setupStatsSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup stats schema: %w", err)
	}

	s, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create page store: %w", err)
	}
	s.SetLogger(logger)

	return &app{cm: cm, logger: logger, db: db, store: s}, nil
}

// siteID returns the site the configuration scopes every command to.
func (a *app) siteID() int64 {
	if id := a.cm.Get().Templates.SiteID; id != 0 {
		return id
	}
	return store.DefaultSiteID
}

// templateManager creates a TemplateManager for the configured template dir.
func (a *app) templateManager() (*templating.TemplateManager, error) {
	config := a.cm.Get()
	tm, err := templating.NewTemplateManager(a.logger, a.store, *config.Templates, config.Server.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create template manager: %w", err)
	}
	a.cm.SetTemplateManager(tm)
	return tm, nil
}

func (a *app) Close() {
	a.store.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}
