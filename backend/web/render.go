package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Renderer.Render.
const (
	PageIndex    = "index"
	PageEdit     = "edit"
	PageLogin    = "login"
	PageSettings = "settings"
	PageNotFound = "404"
	PageError    = "500"
)

var pageNames = []string{PageIndex, PageEdit, PageLogin, PageSettings, PageNotFound, PageError}

// Page is the data every template receives. Data holds the page-specific payload.
type Page struct {
	Title         string
	Name          string
	Authenticated bool
	Flashes       []string
	Data          any
}

// Renderer executes the embedded HTML templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

// NewRenderer parses every page together with the base layout.
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes page name with the given status. The page is executed into a
// buffer first so a template error still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", page); err != nil {
		r.logger.Error("Error rendering template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Warn("failed to write response", zap.Error(err))
	}
}

// NotFound renders the 404 page.
func (r *Renderer) NotFound(w http.ResponseWriter, page Page) {
	r.Render(w, http.StatusNotFound, PageNotFound, page)
}

// ServerError renders the 500 page.
func (r *Renderer) ServerError(w http.ResponseWriter, page Page) {
	r.Render(w, http.StatusInternalServerError, PageError, page)
}

// Redirect sends the client to url, using 303 See Other after a non-GET request
// so the browser follows up with a GET.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	status := http.StatusFound
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, url, status)
}
