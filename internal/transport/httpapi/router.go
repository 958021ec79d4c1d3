package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pbujok/budgetbook/internal/transport/httpapi/handler"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
	"github.com/pbujok/budgetbook/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	AuthHandler        *handler.AuthHandler
	BudgetHandler      *handler.BudgetHandler
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	HealthHandler      *handler.HealthHandler
	JWTMiddleware      func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public - no authentication required)
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// Protected routes (require JWT authentication)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				if cfg.BudgetHandler != nil {
					r.Post("/budgets", cfg.BudgetHandler.CreateBudget)
					r.Get("/budgets", cfg.BudgetHandler.ListBudgets)
					r.Get("/budgets/{id}/summary", cfg.BudgetHandler.GetSummary)
					r.Put("/budgets/{id}/settings", cfg.BudgetHandler.UpdateSettings)
				}

				if cfg.AccountHandler != nil {
					r.Route("/budgets/{id}/accounts", func(r chi.Router) {
						r.Post("/", cfg.AccountHandler.CreateAccount)
						r.Delete("/{accountID}", cfg.AccountHandler.DeactivateAccount)
						r.Get("/{accountID}/transactions", cfg.AccountHandler.ListTransactions)
					})
				}

				if cfg.TransactionHandler != nil {
					r.Post("/budgets/{id}/transactions", cfg.TransactionHandler.CreateTransaction)
					r.Delete("/budgets/{id}/transactions/{txID}", cfg.TransactionHandler.DeleteTransaction)
					r.Post("/budgets/{id}/items/{itemID}/clear", cfg.TransactionHandler.ClearItem)
					r.Post("/budgets/{id}/bills/pay", cfg.TransactionHandler.PayBill)
				}
			})
		}
	})

	return r
}
