package target

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// EmbeddedTemplates contains the bundled configuration templates.
//
//go:embed templates/*.tmpl
var EmbeddedTemplates embed.FS

// Template names.
const (
	TemplateXorg        = "xorg.conf"
	TemplateSway        = "sway.conf"
	TemplateHyprland    = "hyprland.conf"
	TemplateKWin        = "kwin.conf"
	TemplateGNOME       = "gnome.sh"
	TemplateKernel      = "nvidia.conf"
	TemplateUnsupported = "unsupported.txt"
)

const templateExt = ".tmpl"

// Templates renders configuration dialects.
type Templates struct {
	set *template.Template
}

var defaultTemplates = mustParseEmbedded()

func mustParseEmbedded() *Templates {
	set, err := template.New("cru").Option("missingkey=error").ParseFS(EmbeddedTemplates, "templates/*"+templateExt)
	if err != nil {
		panic(fmt.Sprintf("parse embedded templates: %v", err))
	}
	return &Templates{set: set}
}

// DefaultTemplates returns the bundled templates.
func DefaultTemplates() *Templates {
	return defaultTemplates
}

// ListEmbeddedTemplates returns the names of all bundled templates.
func ListEmbeddedTemplates() []string {
	entries, err := EmbeddedTemplates.ReadDir("templates")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), templateExt) {
			names = append(names, strings.TrimSuffix(entry.Name(), templateExt))
		}
	}
	return names
}

// LoadTemplates returns the bundled templates with any same-named
// "<name>.tmpl" file in dir taking precedence. An empty or missing dir
// yields the bundled set.
func LoadTemplates(dir string, logger *slog.Logger) (*Templates, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return defaultTemplates, nil
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Debug("template directory not available, using bundled templates", "dir", dir, "error", err)
		return defaultTemplates, nil
	}

	set, err := defaultTemplates.set.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone templates: %w", err)
	}

	for _, name := range ListEmbeddedTemplates() {
		path := filepath.Join(dir, name+templateExt)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if _, err := set.New(name + templateExt).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
		}
		logger.Info("using user template", "name", name, "path", path)
	}
	return &Templates{set: set}, nil
}

// Execute renders the named template.
func (t *Templates) Execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name+templateExt, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
