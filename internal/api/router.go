package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/vicentsargues/FACTURAFACIL/docs" // swagger docs
)

func NewRouter(h *Handler, mw *Middleware) http.Handler {
	mux := chi.NewRouter()
	mux.Use(mw.Log, mw.Recover, mw.Cors)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)
		r.Get("/swagger/*", httpSwagger.Handler())

		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth)

			r.Route("/invoices", func(r chi.Router) {
				r.Post("/", h.CreateInvoice)
				r.Get("/", h.Invoices)
				r.Get("/{id}", h.Invoice)
				r.Get("/{id}/pdf", h.InvoicePDF)
			})

			r.Get("/clients", h.Clients)
		})
	})

	return mux
}
