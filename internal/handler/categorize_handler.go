package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/service"
)

// CategorizeRequest is the body of POST /api/v1/categorize. Amount accepts a JSON
// number or a numeric string.
type CategorizeRequest struct {
	Description  string           `json:"description"`
	Amount       *decimal.Decimal `json:"amount"`
	MerchantName string           `json:"merchant_name"`
}

func (r CategorizeRequest) input() domain.CategorizationInput {
	return domain.CategorizationInput{Description: r.Description, Amount: r.Amount, MerchantName: r.MerchantName}
}

// BatchRequest is the body of POST /api/v1/categorize/batch.
type BatchRequest struct {
	Items []CategorizeRequest `json:"items" binding:"required"`
}

// CorrectionRequest is the body of POST /api/v1/corrections.
type CorrectionRequest struct {
	CategorizeRequest
	CorrectCategory string `json:"correct_category" binding:"required"`
}

// CategorizeHandler serves categorization, corrections and the category list.
type CategorizeHandler struct {
	svc service.CategorizationService
}

// NewCategorizeHandler creates a new CategorizeHandler.
func NewCategorizeHandler(svc service.CategorizationService) *CategorizeHandler {
	return &CategorizeHandler{svc: svc}
}

// Categorize handles POST /api/v1/categorize
func (h *CategorizeHandler) Categorize(c *gin.Context) {
	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	res, err := h.svc.Categorize(c.Request.Context(), req.input())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// CategorizeBatch handles POST /api/v1/categorize/batch
func (h *CategorizeHandler) CategorizeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	inputs := make([]domain.CategorizationInput, len(req.Items))
	for i := range req.Items {
		inputs[i] = req.Items[i].input()
	}
	results, err := h.svc.CategorizeBatch(c.Request.Context(), inputs)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"results": results, "count": len(results)})
}

// SubmitCorrection handles POST /api/v1/corrections
func (h *CategorizeHandler) SubmitCorrection(c *gin.Context) {
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	correction, err := h.svc.SubmitCorrection(c.Request.Context(), req.input(), req.CorrectCategory)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, correction)
}

// ListCategories handles GET /api/v1/categories
func (h *CategorizeHandler) ListCategories(c *gin.Context) {
	cats := h.svc.ListCategories()
	RespondOK(c, gin.H{"categories": cats, "count": len(cats)})
}
