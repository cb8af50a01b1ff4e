package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type listing struct {
	Movies []struct {
		ID    int64
		Title string
		Year  string
	}
}

func TestRenderer(t *testing.T) {
	r, err := NewRenderer(zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Run("index with flashes", func(t *testing.T) {
		data := listing{}
		data.Movies = append(data.Movies, struct {
			ID    int64
			Title string
			Year  string
		}{ID: 7, Title: "Leon", Year: "1994"})

		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, PageIndex, Page{
			Name:          "Grey Li",
			Authenticated: true,
			Flashes:       []string{"Item created."},
			Data:          data,
		})

		body := rec.Body.String()
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, body, "Grey Li's Watchlist")
		assert.Contains(t, body, "Item created.")
		assert.Contains(t, body, "Leon - 1994")
		assert.Contains(t, body, "/movie/edit/7")
		assert.Contains(t, body, "1 Titles")
	})

	t.Run("index hides forms when anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, PageIndex, Page{Data: listing{}})

		body := rec.Body.String()
		assert.NotContains(t, body, `action="/"`)
		assert.Contains(t, body, `href="/login"`)
	})

	t.Run("escapes user content", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, PageSettings, Page{Name: "<script>"})

		assert.NotContains(t, rec.Body.String(), "<script>")
		assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.NotFound(rec, Page{})

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Page Not Found")
	})

	t.Run("unknown page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, "missing", Page{})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("template error yields 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, PageIndex, Page{Data: 42})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	var fromCtx *zap.Logger
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = Logger(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movie/edit/1", nil))

	require.NotNil(t, fromCtx)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	id := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/movie/edit/1", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.Equal(t, id, fields["request_id"])
}

func TestLoggerFallback(t *testing.T) {
	fallback := zap.NewNop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Same(t, fallback, Logger(req.Context(), fallback))
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	r, err := NewRenderer(logger)
	require.NoError(t, err)

	h := Recoverer(logger, r)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic serving request").Len())
}
