package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/natefinch/atomic"

	"github.com/CTAG07/pagetags/pkg/store"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// ServeCmd runs the page server and the API server until a shutdown.
type ServeCmd struct{}

func (c *ServeCmd) Run(g *Globals) error {
	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		actionChan <- actionShutdown
	}()

	for {
		action, err := serve(g, actionChan)
		if err != nil {
			return err
		}
		if action != actionRestart {
			return nil
		}
	}
}

// serve hosts both servers for one cycle and returns whenever the server is
// shut down or restarted.
func serve(g *Globals, actionChan chan string) (string, error) {
	a, err := openApp(g)
	if err != nil {
		return "", err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("Starting server cycle...", "version", Version)

	tm, err := a.templateManager()
	if err != nil {
		return "", err
	}

	server, err := NewServer(a, tm, actionChan)
	if err != nil {
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	config := a.cm.Get()
	pageHttpServer := &http.Server{Addr: config.Server.ServerAddr, Handler: server.pageMux}
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.apiMux}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("Starting page server", "address", pageHttpServer.Addr)
		if err := pageHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Page server failed", "error", err)
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping servers for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	if err = pageHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Page server shutdown failed", "error", err)
	}
	logger.Info("HTTP servers stopped.")
	return action, nil
}

// RenderCmd renders one template to stdout.
type RenderCmd struct {
	Template string            `arg:"" help:"Name of the template, such as page.tmpl.html."`
	Slug     string            `help:"Put the page with this slug into the render context as 'page'." short:"s"`
	Vars     map[string]string `help:"Extra render context variables." name:"var" short:"v"`
}

func (c *RenderCmd) Run(ctx context.Context, g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	tm, err := a.templateManager()
	if err != nil {
		return err
	}

	vars := make(map[string]any, len(c.Vars)+1)
	for k, v := range c.Vars {
		vars[k] = v
	}
	if c.Slug != "" {
		page, err := a.store.GetPage(ctx, a.siteID(), c.Slug)
		if err != nil {
			return fmt.Errorf("page '%s': %w", c.Slug, err)
		}
		vars["page"] = page
	}

	var buf bytes.Buffer
	if err = tm.Execute(ctx, &buf, c.Template, vars); err != nil {
		return err
	}
	_, err = buf.WriteTo(os.Stdout)
	return err
}

// ImportCmd loads pages from a YAML or JSON export.
type ImportCmd struct {
	File string `arg:"" help:"YAML or JSON file to import, or '-' for stdin." default:"-" optional:""`
}

func (c *ImportCmd) Run(ctx context.Context, g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		r = f
	}

	n, err := a.store.ImportPages(ctx, a.siteID(), r)
	if err != nil {
		return err
	}
	a.logger.Info("Import finished", "file", c.File, "pages", n)
	return nil
}

// ExportCmd writes all pages of the configured site as JSON.
type ExportCmd struct {
	Out string `help:"Write to this file instead of stdout. The file is replaced atomically." short:"o" type:"path"`
}

func (c *ExportCmd) Run(ctx context.Context, g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	var buf bytes.Buffer
	if err = a.store.ExportPages(ctx, a.siteID(), &buf); err != nil {
		return err
	}
	if c.Out == "" {
		_, err = buf.WriteTo(os.Stdout)
		return err
	}
	if err = atomic.WriteFile(c.Out, &buf); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	a.logger.Info("Export written", "file", c.Out)
	return nil
}

// TagCmd replaces the tags of a page.
type TagCmd struct {
	Slug string `arg:"" help:"Slug of the page to tag."`
	Tags string `arg:"" help:"New tags, space or comma separated; quote tags containing spaces." optional:""`
}

func (c *TagCmd) Run(ctx context.Context, g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.store.GetPage(ctx, a.siteID(), c.Slug)
	if errors.Is(err, store.ErrPageNotFound) {
		return fmt.Errorf("no page with slug '%s'", c.Slug)
	}
	if err != nil {
		return err
	}
	page, err = a.store.SetPageTags(ctx, page.ID, c.Tags)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, page.Tags)
	return err
}
