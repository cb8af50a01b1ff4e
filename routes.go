package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/PressureTank/watchlist/backend/config"
	"github.com/PressureTank/watchlist/backend/database/sqlite"
	"github.com/PressureTank/watchlist/backend/movie"
	"github.com/PressureTank/watchlist/backend/session"
	"github.com/PressureTank/watchlist/backend/user"
	"github.com/PressureTank/watchlist/backend/web"
)

// NewRouter wires the services and handlers over store and registers every route.
func NewRouter(cfg *config.Config, store *sqlite.SQLiteDB, logger *zap.Logger) (http.Handler, error) {
	renderer, err := web.NewRenderer(logger.Named("web"))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	sessions := session.NewManager(session.Config{
		Secret:     []byte(cfg.Session.Secret),
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	})

	limiter := user.NewLoginLimiter(cfg.Auth.LoginAttemptsPerMinute, cfg.Auth.LoginBurst)

	userService := user.NewService(store, cfg.Auth.BcryptCost, logger.Named("user"))
	movieService := movie.NewService(store, logger.Named("movie"))

	userHandler := user.NewUserHandler(userService, sessions, renderer, limiter, logger.Named("user"))
	movieHandler := movie.NewMovieHandler(movieService, userHandler, sessions, renderer, logger.Named("movie"))

	guard := func(h http.HandlerFunc) http.Handler { return userHandler.RequireAuth(h) }

	middleware := []mux.MiddlewareFunc{
		web.RequestLogger(logger),
		web.Recoverer(logger, renderer),
		userHandler.Authenticate,
	}

	r := mux.NewRouter()
	r.Use(middleware...)

	r.HandleFunc("/", movieHandler.IndexHandler).Methods("GET")
	r.HandleFunc("/", movieHandler.CreateHandler).Methods("POST")
	r.Handle("/movie/edit/{id:[0-9]+}", guard(movieHandler.EditPage)).Methods("GET")
	r.Handle("/movie/edit/{id:[0-9]+}", guard(movieHandler.EditHandler)).Methods("POST")
	r.Handle("/movie/delete/{id:[0-9]+}", guard(movieHandler.DeleteHandler)).Methods("POST")

	r.HandleFunc("/login", userHandler.LoginPage).Methods("GET")
	r.HandleFunc("/login", userHandler.LoginHandler).Methods("POST")
	r.Handle("/logout", guard(userHandler.LogoutHandler)).Methods("GET")
	r.Handle("/settings", guard(userHandler.SettingsPage)).Methods("GET")
	r.Handle("/settings", guard(userHandler.SettingsHandler)).Methods("POST")

	// router middleware only runs for matched routes
	notFound := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		renderer.NotFound(w, userHandler.Page(w, req, "Not Found", nil))
	})
	r.NotFoundHandler = chain(notFound, middleware...)

	return r, nil
}

// chain wraps h in mws with mws[0] outermost, the order mux.Router.Use applies.
func chain(h http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
