package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drdesk/api/handlers"
	"drdesk/api/routegroups"
	"drdesk/core/auth"
)

type routeHandlers struct {
	auth        *handlers.AuthHandler
	incidents   *handlers.IncidentsHandler
	selection   *handlers.SelectionHandler
	stages      *handlers.StagesHandler
	attachments *handlers.AttachmentsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:        handlers.NewAuthHandler(s.authn, s.audits, s.logger),
		incidents:   handlers.NewIncidentsHandler(s.workflow, s.audits, s.logger),
		selection:   handlers.NewSelectionHandler(s.workflow, s.audits, s.logger),
		stages:      handlers.NewStagesHandler(s.workflow, s.audits, s.logger),
		attachments: handlers.NewAttachmentsHandler(s.attachments, s.audits, s.logger, s.cfg.HTTP.MaxUploadBytes),
	}
}

func (s *Server) guards() routegroups.Guards {
	return routegroups.Guards{
		WithSession:       s.withSession,
		RequirePermission: s.requirePermission,
	}
}

func (s *Server) routes() http.Handler {
	h := s.newRouteHandlers()
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)
	if s.cfg.HTTP.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.HTTP.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.registerFiles(r)

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Post("/login", s.rateLimitMiddleware(h.auth.Login))
		g := s.guards()
		routegroups.RegisterIncidents(apiRouter, g, h.incidents, h.selection)
		routegroups.RegisterStages(apiRouter, g, h.stages)
		routegroups.RegisterAttachments(apiRouter, g, h.attachments)
	})
	return r
}

// registerFiles serves stored attachments under the public base URL.
func (s *Server) registerFiles(r chi.Router) {
	if s.filesDir == "" {
		return
	}
	base := "/" + strings.Trim(s.cfg.Attachments.PublicBaseURL, "/")
	if base == "/" {
		base = "/files"
	}
	files := http.StripPrefix(base, noDirListing(http.FileServer(http.Dir(s.filesDir))))
	r.Get(base+"/*", s.withSession(s.requirePermission(auth.ObjAttachments, auth.ActRead)(files.ServeHTTP)))
}

// noDirListing answers 404 for directory paths so stored files can only be
// fetched by their exact URL.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
