package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Get("/ws", c.connect)
		r.Route("/rooms/{room}", func(r chi.Router) {
			r.Route("/queue", func(r chi.Router) {
				r.Get("/", c.getQueue)
				r.Post("/", c.addToQueue)
				r.Post("/clear", c.clearQueue)
				r.Delete("/{index}", c.removeFromQueue)
			})
			r.Post("/play", c.play)
			r.Post("/pause", c.pause)
			r.Post("/resume", c.resume)
			r.Post("/skip", c.skip)
			r.Post("/previous", c.previous)
			r.Post("/seek", c.seek)
			r.Post("/stop", c.stop)
			r.Post("/disconnected", c.disconnected)
			r.Get("/progress", c.getProgress)
			r.Get("/status", c.getStatus)
		})
	})

	return r
}
