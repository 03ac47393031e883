package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mvoronov/cafeteria-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware кафетерия льгот.
func (h *Handler) SetupRouter(auth *custommiddleware.AuthMiddleware) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Post("/auth/logout", h.Logout)

			r.Get("/users/me", h.GetMe)
			r.Post("/users", h.CreateUser)

			r.Route("/benefits", func(r chi.Router) {
				r.Get("/", h.ListBenefits)
				r.Post("/", h.CreateBenefit)
				r.Get("/{id}", h.GetBenefit)
				r.Patch("/{id}", h.UpdateBenefit)
				r.Delete("/{id}", h.DeleteBenefit)
			})

			r.Route("/benefit-requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.CreateRequest)
				r.Get("/export", h.ExportRequests)
				r.Get("/{id}", h.GetRequest)
				r.Patch("/{id}", h.UpdateRequest)
				r.Delete("/{id}", h.DeleteRequest)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
