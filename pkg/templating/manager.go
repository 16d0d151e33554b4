package templating

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/pagetags"
	"github.com/CTAG07/pagetags/pkg/store"
)

// TemplateManager is the central controller for the templating engine.
// It manages the template set, the compiled directives of every page template,
// configuration and the function map. It is responsible for loading,
// parsing, and executing templates in a concurrent-safe manner.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	source         pagetags.Source
	library        *directive.Library
	templates      *template.Template
	cleanTemplates *template.Template
	directives     map[string][]directive.Node
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	mu             sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// It requires a logger, the page source directives query, a configuration and
// the directory holding the *.tmpl.html and *.part.html files. It performs an
// initial Refresh to load all templates.
func NewTemplateManager(logger *slog.Logger, source pagetags.Source, config TemplateConfig, templateDir string) (*TemplateManager, error) {
	tm := &TemplateManager{
		logger:      logger,
		source:      source,
		templateDir: templateDir,
		config:      &config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Template manager initialized")
	return tm, nil
}

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Tags (from funcs_tags.go)
		"tagList":    tagList,
		"sortedTags": sortedTags,
		"joinTags":   joinTags,

		// Content (from funcs_content.go)
		"markdown":    tm.markdown,
		"naturalTime": naturalTime,
		"date":        date,
		"plural":      plural,

		// Simple (from funcs_simple.go)
		"list":  list,
		"add":   add,
		"sub":   sub,
		"inc":   inc,
		"dec":   dec,
		"isSet": isSet,
	}
}

// newLibrary builds a directive library bound to the manager's source and
// the given configuration.
func (tm *TemplateManager) newLibrary(config TemplateConfig) (*directive.Library, error) {
	siteID := config.SiteID
	if siteID == 0 {
		siteID = store.DefaultSiteID
	}
	lib := directive.NewLibrary()
	err := pagetags.Register(lib, tm.source,
		pagetags.WithSiteID(siteID),
		pagetags.WithMaxResults(config.MaxResults),
		pagetags.WithLogger(tm.logger),
	)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// SetConfig applies a new configuration to the TemplateManager and reloads
// the templates so that their directives pick up the new site and result cap.
// If the reload fails the previous configuration stays in effect.
func (tm *TemplateManager) SetConfig(config TemplateConfig) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	old := tm.config
	tm.config = &config
	if err := tm.load(); err != nil {
		tm.config = old
		return err
	}
	return nil
}

// Refresh reloads all templates from the filesystem and recompiles their
// directives. This function allows for updates to templates without
// restarting the application. On error the previously loaded set stays in use.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.load()
}

// load must be called with mu held for writing.
func (tm *TemplateManager) load() error {
	lib, err := tm.newLibrary(*tm.config)
	if err != nil {
		return err
	}

	tm.logger.Info("Loading template files...")
	pageFiles, err := filepath.Glob(filepath.Join(tm.templateDir, "*.tmpl.html"))
	if err != nil {
		return err
	}
	partFiles, err := filepath.Glob(filepath.Join(tm.templateDir, "*.part.html"))
	if err != nil {
		return err
	}

	set := template.New("").Funcs(tm.funcMap)
	compiled := make(map[string][]directive.Node, len(pageFiles))
	names := make([]string, 0, len(pageFiles))

	for _, file := range pageFiles {
		name := filepath.Base(file)
		body, tokens, err := readTemplate(file)
		if err != nil {
			tm.logger.Error("failed to read template file", "file", file, "error", err)
			return err
		}
		nodes, err := lib.CompileAll(tokens)
		if err != nil {
			tm.logger.Error("failed to compile directives", "template", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err = set.New(name).Parse(body); err != nil {
			tm.logger.Error("failed to parse template file", "template", name, "error", err)
			return err
		}
		compiled[name] = nodes
		names = append(names, name)
	}

	tm.logger.Info("Loading partial files...")
	for _, file := range partFiles {
		name := filepath.Base(file)
		body, tokens, err := readTemplate(file)
		if err != nil {
			tm.logger.Error("failed to read partial file", "file", file, "error", err)
			return err
		}
		if len(tokens) > 0 {
			err = &directive.SyntaxError{
				Directive: tokens[0].Name(),
				Line:      tokens[0].Line,
				Msg:       "directive blocks are not allowed in partials",
			}
			tm.logger.Error("failed to parse partial file", "template", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err = set.New(name).Parse(body); err != nil {
			tm.logger.Error("failed to parse partial file", "template", name, "error", err)
			return err
		}
	}

	if len(names) == 0 {
		tm.logger.Warn("No template files found", "dir", tm.templateDir)
	}

	// Create a clean clone for string executions after all parsing is complete.
	clean, err := set.Clone()
	if err != nil {
		tm.logger.Error("failed to create a clean clone of templates", "error", err)
		return err
	}

	sort.Strings(names)
	tm.library = lib
	tm.templates = set
	tm.cleanTemplates = clean
	tm.directives = compiled
	tm.templateNames = names
	tm.logger.Info("Loaded template and partial files",
		"templates", len(pageFiles),
		"partials", len(partFiles),
		"directives", countNodes(compiled),
	)
	return nil
}

func readTemplate(path string) (string, []directive.Token, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	body, tokens := directive.Scan(string(content))
	return body, tokens, nil
}

func countNodes(compiled map[string][]directive.Node) int {
	n := 0
	for _, nodes := range compiled {
		n += len(nodes)
	}
	return n
}

// renderDirectives runs nodes in order against a fresh context seeded with vars.
func renderDirectives(ctx context.Context, nodes []directive.Node, vars map[string]any) (directive.Context, error) {
	rc := directive.NewContext(vars)
	for _, node := range nodes {
		// Directive output is discarded, they communicate through rc.
		if _, err := node.Render(ctx, rc); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// Execute renders a specific template by name, writing the output to the
// provided io.Writer. The template's directives run first against a render
// context seeded with vars; the context is then passed to the template as dot.
func (tm *TemplateManager) Execute(ctx context.Context, w io.Writer, name string, vars map[string]any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	rc, err := renderDirectives(ctx, tm.directives[name], vars)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return tm.templates.ExecuteTemplate(w, name, rc)
}

// ExecuteTemplateString compiles and executes a raw template string, directives
// included, using the manager's function map and partials. This is ideal for
// testing or previewing templates without saving them to disk.
func (tm *TemplateManager) ExecuteTemplateString(ctx context.Context, w io.Writer, content string, vars map[string]any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	body, tokens := directive.Scan(content)
	nodes, err := tm.library.CompileAll(tokens)
	if err != nil {
		return fmt.Errorf("failed to compile directives: %w", err)
	}

	// Clone the clean, unexecuted template set to avoid race conditions and execution state issues.
	tempSet, err := tm.cleanTemplates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone clean templates for string execution: %w", err)
	}

	t, err := tempSet.Parse(body)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}

	rc, err := renderDirectives(ctx, nodes, vars)
	if err != nil {
		return err
	}
	return t.Execute(w, rc)
}

// GetConfig returns a copy of the current configuration.
// This mainly exists for concurrency-safety reasons.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the sorted names of the loaded page templates and,
// when withPartials is set, the partials as well.
func (tm *TemplateManager) GetTemplateNames(withPartials bool) []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if !withPartials {
		return append([]string(nil), tm.templateNames...)
	}
	var names []string
	for _, t := range tm.templates.Templates() {
		// By default, there is a root template with no name. We don't want to return this in the list
		if strings.HasSuffix(t.Name(), ".html") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// GetTemplateDir returns the template dir that the TemplateManager uses.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}

// Directives returns the names of the directives templates may use.
func (tm *TemplateManager) Directives() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.library.Names()
}

// HasTemplate reports whether a page template with the given name is loaded.
func (tm *TemplateManager) HasTemplate(name string) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	_, ok := tm.directives[name]
	return ok
}
