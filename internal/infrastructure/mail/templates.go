package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// partials are shared by every page template and are not renderable alone.
var partials = []string{"templates/layout.html", "templates/visit-details.html"}

// Renderer holds one parsed template set per page template.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	base, err := template.ParseFS(templateFS, partials...)
	if err != nil {
		return nil, fmt.Errorf("parse mail partials: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		if isPartial(file) {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", file, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".html")
		r.pages[name] = page
	}
	return r, nil
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	page, ok := r.pages[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown mail template %q", domain.ErrValidation, name)
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Has reports whether name is a known template.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func isPartial(file string) bool {
	for _, p := range partials {
		if p == file {
			return true
		}
	}
	return false
}
