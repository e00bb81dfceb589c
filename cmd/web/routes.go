package main

import (
	"context"
	"net/http"
	"sort"

	"github.com/AdamBeresnev/arena-hub/internal/httputil"
	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	"github.com/AdamBeresnev/arena-hub/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// Cross-origin callers only get in when they are configured
	if origins := app.cfg.Server.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(middleware.LoadAuthenticatedUser(app.sessionManager, app.userStore))

	// Serve static files
	fileServer := http.FileServer(http.Dir(app.cfg.Server.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/events/{ref}", app.eventBoardPage)
	r.Get("/ws/events/{eventID}/matches", app.watchMatches)

	r.Route("/api", func(r chi.Router) {
		// Public reads and team signup
		r.Get("/events", app.listEvents)
		r.Get("/events/{eventID}", app.getEvent)
		r.Post("/events/{eventID}/registrations", app.registerTeam)
		r.Get("/events/{eventID}/matches", app.listMatches)
		r.Get("/events/{eventID}/standings", app.getStandings)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/events", app.createEvent)
			r.Delete("/events/{eventID}", app.deleteEvent)
			r.Get("/events/{eventID}/registrations", app.listRegistrations)
			r.Post("/events/{eventID}/registrations/import", app.importRegistrations)
			r.Post("/events/{eventID}/matches", app.createMatches)
			r.Delete("/events/{eventID}/matches", app.clearMatches)
			r.Delete("/events/{eventID}/matches/{matchID}", app.deleteMatch)
			r.Post("/matches/{matchID}/winner", app.declareWinner)
			r.Post("/matches/{matchID}/status", app.updateStatus)
			r.Post("/matches/{matchID}/stats", app.recordStats)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/", app.indexPage)
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		if err := app.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())

		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		views.Render(w, r, views.LoginPage(providerNames()))
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := app.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		if err := app.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to log out", err)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	return r
}

func providerNames() []string {
	var names []string
	for name := range goth.GetProviders() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
