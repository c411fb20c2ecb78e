package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/search", s.search)
			r.Get("/stats", s.stats)
			r.Post("/sessions", s.createSession)
		})

		r.Route("/sessions/{session}", func(r chi.Router) {
			r.Use(s.withViewer)

			// Long-lived; not subject to the request timeout.
			r.Get("/stream", s.stream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(s.timeout))
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/trace/{node}", s.trace)
				r.Delete("/selection", s.clearSelection)
				r.Get("/eras", s.eras)
				r.Post("/eras/{era}", s.flyToEra)
				r.Post("/tick", s.tick)
				r.Post("/zoom", s.zoom)
				r.Get("/frame.{format}", s.frame)
			})
		})
	})
	return r
}
