// Package httpapi exposes the stories service over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/orgball2608/fary-stories/internal/auth"
	"github.com/orgball2608/fary-stories/internal/stories"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// multipart overhead allowed on top of the media cap
const formOverhead = 1 << 20

type Opts struct {
	fx.In

	Stories stories.Service
	Auth    *auth.Manager
	Config  *config.Config
	Logger  logger.Logger
}

type Server struct {
	stories stories.Service
	auth    *auth.Manager
	cfg     *config.Config
	logger  logger.Logger
}

func New(opts Opts) *Server {
	return &Server{
		stories: opts.Stories,
		auth:    opts.Auth,
		cfg:     opts.Config,
		logger:  opts.Logger.WithComponent("HTTP"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.HTTP.RequestsPerMinute, time.Minute))
		r.Use(s.authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-in", s.signIn)
			r.Get("/check", s.checkAuth)
			r.Post("/sign-out", s.signOut)
		})

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", s.feed)
			r.With(requireIdentity).Post("/", s.publish)
			r.Post("/search", s.search)
			r.Get("/user/{subjectKey}", s.listBySubject)
			r.Post("/update-viewers", s.recordViewLegacy)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getStory)
				r.With(requireIdentity).Patch("/", s.updateStory)
				r.With(requireIdentity).Delete("/", s.deleteStory)
				r.Post("/views", s.recordView)
				r.With(requireIdentity).Get("/viewers", s.listViewers)
			})
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
