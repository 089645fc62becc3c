package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Engine renders the HTML templates embedded in the package.
type Engine struct {
	templates *template.Template
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(funcs()).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with the provided data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"userOrDash": func(s *string) string {
			if s == nil || *s == "" {
				return "-"
			}
			return *s
		},
		"pathEscape": url.PathEscape,
		"timestamp": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format(time.RFC3339)
		},
	}
}
