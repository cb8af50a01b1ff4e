package movie

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/PressureTank/watchlist/backend/common"
	"github.com/PressureTank/watchlist/backend/user"
	"github.com/PressureTank/watchlist/backend/web"
)

// Flash messages shown after movie changes.
const (
	FlashCreated      = "Item created."
	FlashUpdated      = "Item updated."
	FlashDeleted      = "Item deleted."
	FlashInvalidInput = "Invalid input."
)

// PageBuilder assembles the shared template data for a request.
type PageBuilder interface {
	Page(w http.ResponseWriter, r *http.Request, title string, data any) web.Page
}

// Flasher queues one-shot messages for the next page.
type Flasher interface {
	Flash(w http.ResponseWriter, r *http.Request, msg string)
}

// ListData is the payload of the index page.
type ListData struct {
	Movies []Movie
}

// EditData is the payload of the edit page.
type EditData struct {
	Movie *Movie
}

// Handler serves the watchlist routes.
type Handler struct {
	svc      *Service
	pages    PageBuilder
	flash    Flasher
	renderer *web.Renderer
	logger   *zap.Logger
}

func NewMovieHandler(svc *Service, pages PageBuilder, flash Flasher, renderer *web.Renderer, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		pages:    pages,
		flash:    flash,
		renderer: renderer,
		logger:   logger,
	}
}

// IndexHandler lists every movie.
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	movies, err := h.svc.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageIndex, h.pages.Page(w, r, "", ListData{Movies: movies}))
}

// CreateHandler adds a movie. Anonymous submissions are silently sent back to the list.
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := user.FromContext(r.Context()); !ok {
		web.Redirect(w, r, "/")
		return
	}

	_, err := h.svc.Create(r.Context(), r.PostFormValue("title"), r.PostFormValue("year"))
	if errors.Is(err, common.ErrInvalidInput) {
		h.flash.Flash(w, r, FlashInvalidInput)
		web.Redirect(w, r, "/")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.flash.Flash(w, r, FlashCreated)
	web.Redirect(w, r, "/")
}

// EditPage renders the edit form for one movie.
func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageEdit, h.pages.Page(w, r, "Edit", EditData{Movie: m}))
}

// EditHandler saves the submitted title and year.
func (h *Handler) EditHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}

	err := h.svc.Edit(r.Context(), m.ID, r.PostFormValue("title"), r.PostFormValue("year"))
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		h.flash.Flash(w, r, FlashInvalidInput)
		web.Redirect(w, r, "/movie/edit/"+strconv.FormatInt(m.ID, 10))
		return
	case errors.Is(err, common.ErrNotFound):
		h.renderer.NotFound(w, h.pages.Page(w, r, "Not Found", nil))
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	h.flash.Flash(w, r, FlashUpdated)
	web.Redirect(w, r, "/")
}

// DeleteHandler removes a movie.
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}

	err := h.svc.Delete(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		h.renderer.NotFound(w, h.pages.Page(w, r, "Not Found", nil))
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.flash.Flash(w, r, FlashDeleted)
	web.Redirect(w, r, "/")
}

// lookup loads the movie named by the {id} route variable, answering 404 itself.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Movie, bool) {
	id, ok := h.movieID(w, r)
	if !ok {
		return nil, false
	}

	m, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		h.renderer.NotFound(w, h.pages.Page(w, r, "Not Found", nil))
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, err)
		return nil, false
	}
	return m, true
}

func (h *Handler) movieID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.renderer.NotFound(w, h.pages.Page(w, r, "Not Found", nil))
		return 0, false
	}
	return id, true
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	web.Logger(r.Context(), h.logger).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.renderer.ServerError(w, web.Page{})
}
