package router

import (
	"github.com/gin-gonic/gin"

	"ledgerlens/internal/handler"
	"ledgerlens/internal/middleware"
)

// Handlers groups the route handlers. Tokens and Expense are nil when the expense
// store is disabled.
type Handlers struct {
	Categorize *handler.CategorizeHandler
	Receipt    *handler.ReceiptHandler
	Health     *handler.HealthHandler
	Expense    *handler.ExpenseHandler
	Tokens     middleware.TokenValidator
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health.Health)

	v1.POST("/categorize", h.Categorize.Categorize)
	v1.POST("/categorize/batch", h.Categorize.CategorizeBatch)
	v1.POST("/corrections", h.Categorize.SubmitCorrection)
	v1.GET("/categories", h.Categorize.ListCategories)
	v1.POST("/receipts/extract", h.Receipt.Extract)

	if h.Expense != nil && h.Tokens != nil {
		expenses := v1.Group("/expenses")
		expenses.Use(middleware.AuthMiddleware(h.Tokens))
		expenses.POST("", h.Expense.Create)
		expenses.POST("/scan", h.Expense.Scan)
		expenses.GET("", h.Expense.List)
		expenses.GET("/summary", h.Expense.Summary)
		expenses.GET("/export", h.Expense.Export)
		expenses.GET("/:id", h.Expense.GetByID)
		expenses.GET("/:id/receipt", h.Expense.ReceiptURL)
		expenses.PUT("/:id", h.Expense.Update)
		expenses.DELETE("/:id", h.Expense.Delete)
	}

	return r
}
