package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/nwhitfield/minicrm-system/internal/middleware"
)

// SetupRouter configures the HTTP routes and middleware of the mini-CRM API.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCustomer)
				r.Put("/", h.UpdateCustomer)
				r.Delete("/", h.DeleteCustomer)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.Put("/", h.UpdateProduct)
				r.Delete("/", h.DeleteProduct)
			})
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSale)
				r.Put("/", h.UpdateSale)
				r.Delete("/", h.DeleteSale)
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
