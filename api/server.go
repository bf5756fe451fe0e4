/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/invoices/*          Accounts receivable documents
  /api/payments-received/* Customer payments
  /api/credit-notes/*      Credit notes
  /api/bills/*             Accounts payable documents
  /api/payments-made/*     Vendor payments
  /api/vendor-credits/*    Vendor credits
  /api/sales-orders/*      Sales orders (derived payment status)
  /api/health              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Accounts receivable
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
			r.Post("/{id}/void", h.VoidInvoice)
			r.Post("/{id}/payments", h.RecordInvoicePayment)
			r.Post("/{id}/credits", h.ApplyInvoiceCredits)
		})

		r.Route("/payments-received", func(r chi.Router) {
			r.Get("/", h.ListPaymentsReceived)
			r.Get("/{id}", h.GetPaymentReceived)
			r.Put("/{id}", h.EditPaymentReceived)
			r.Delete("/{id}", h.DeletePaymentReceived)
			r.Post("/{id}/void", h.VoidPaymentReceived)
			r.Post("/{id}/apply", h.ApplyPaymentReceivedBalance)
		})

		r.Route("/credit-notes", func(r chi.Router) {
			r.Get("/", h.ListCreditNotes)
			r.Post("/", h.CreateCreditNote)
			r.Get("/{id}", h.GetCreditNote)
			r.Delete("/{id}", h.DeleteCreditNote)
			r.Post("/{id}/apply", h.ApplyCreditNote)
		})

		// Accounts payable
		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListBills)
			r.Post("/", h.CreateBill)
			r.Get("/{id}", h.GetBill)
			r.Delete("/{id}", h.DeleteBill)
			r.Post("/{id}/void", h.VoidBill)
			r.Post("/{id}/payments", h.RecordBillPayment)
			r.Post("/{id}/credits", h.ApplyBillCredits)
		})

		r.Route("/payments-made", func(r chi.Router) {
			r.Get("/", h.ListPaymentsMade)
			r.Get("/{id}", h.GetPaymentMade)
			r.Put("/{id}", h.EditPaymentMade)
			r.Delete("/{id}", h.DeletePaymentMade)
			r.Post("/{id}/void", h.VoidPaymentMade)
			r.Post("/{id}/apply", h.ApplyPaymentMadeBalance)
		})

		r.Route("/vendor-credits", func(r chi.Router) {
			r.Get("/", h.ListVendorCredits)
			r.Post("/", h.CreateVendorCredit)
			r.Get("/{id}", h.GetVendorCredit)
			r.Delete("/{id}", h.DeleteVendorCredit)
			r.Post("/{id}/apply", h.ApplyVendorCredit)
		})

		// Sales orders
		r.Route("/sales-orders", func(r chi.Router) {
			r.Get("/", h.ListSalesOrders)
			r.Post("/", h.CreateSalesOrder)
			r.Get("/{id}", h.GetSalesOrder)
		})
	})

	return r
}
