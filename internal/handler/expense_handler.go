package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/export"
	"ledgerlens/internal/service"
)

// exportLimit caps the rows returned by an export.
const exportLimit = 10000

// ExpenseHandler serves the per-user expense document store.
type ExpenseHandler struct {
	svc      service.ExpenseService
	maxBytes int64
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(svc service.ExpenseService, maxImageBytes int64) *ExpenseHandler {
	return &ExpenseHandler{svc: svc, maxBytes: maxImageBytes}
}

// Create handles POST /api/v1/expenses
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var input service.CreateExpenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	e, err := h.svc.Create(c.Request.Context(), userID, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, e)
}

// Scan handles POST /api/v1/expenses/scan
func (h *ExpenseHandler) Scan(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	image, format, ok := readReceiptImage(c, h.maxBytes)
	if !ok {
		return
	}

	e, ext, err := h.svc.CreateFromReceipt(c.Request.Context(), userID, image, format)
	if err != nil {
		if ext != nil && ext.ExtractionStatus == domain.ExtractionStatusFailed && !isImageRejection(err) {
			// Failed extractions carry their reason; nothing was stored.
			c.JSON(http.StatusUnprocessableEntity, APIResponse{
				Success: false,
				Data:    ReceiptResponse{ReceiptExtraction: ext, Retryable: domain.IsRetryableExtraction(err)},
				Error:   &APIError{Code: "EXTRACTION_FAILED", Message: ext.FailureReason, Retryable: domain.IsRetryableExtraction(err)},
			})
			return
		}
		HandleError(c, err)
		return
	}
	RespondCreated(c, gin.H{"expense": e, "extraction": ext})
}

// GetByID handles GET /api/v1/expenses/:id
func (h *ExpenseHandler) GetByID(c *gin.Context) {
	userID, id, ok := h.pathParams(c)
	if !ok {
		return
	}
	e, err := h.svc.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, e)
}

// Update handles PUT /api/v1/expenses/:id
func (h *ExpenseHandler) Update(c *gin.Context) {
	userID, id, ok := h.pathParams(c)
	if !ok {
		return
	}
	var input service.UpdateExpenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	e, err := h.svc.Update(c.Request.Context(), userID, id, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, e)
}

// Delete handles DELETE /api/v1/expenses/:id
func (h *ExpenseHandler) Delete(c *gin.Context) {
	userID, id, ok := h.pathParams(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "expense deleted"})
}

// List handles GET /api/v1/expenses?from=&to=&offset=&limit=
func (h *ExpenseHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	filter.Offset, filter.Limit = parsePagination(c)

	expenses, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	RespondPaginated(c, expenses, PagMeta{Total: total, Offset: filter.Offset, Limit: filter.Limit})
}

// Summary handles GET /api/v1/expenses/summary?from=&to=
func (h *ExpenseHandler) Summary(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, summary)
}

// Export handles GET /api/v1/expenses/export?format=csv|xlsx&from=&to=
func (h *ExpenseHandler) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	filter.Limit = exportLimit

	expenses, _, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, export.ExpenseTable(expenses)); err != nil {
		HandleError(c, err)
		return
	}
	filename := export.BuildFilename("expenses", format, time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// ReceiptURL handles GET /api/v1/expenses/:id/receipt
func (h *ExpenseHandler) ReceiptURL(c *gin.Context) {
	userID, id, ok := h.pathParams(c)
	if !ok {
		return
	}
	url, err := h.svc.ReceiptURL(c.Request.Context(), userID, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

func (h *ExpenseHandler) pathParams(c *gin.Context) (string, uuid.UUID, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid expense ID")
		return "", uuid.Nil, false
	}
	return userID, id, true
}

// filter reads the user and the optional inclusive from/to dates (YYYY-MM-DD).
func (h *ExpenseHandler) filter(c *gin.Context) (domain.ExpenseFilter, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return domain.ExpenseFilter{}, false
	}
	filter := domain.ExpenseFilter{UserID: userID}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		d, err := time.Parse(service.DateLayout, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_INPUT", param+" must be YYYY-MM-DD")
			return domain.ExpenseFilter{}, false
		}
		*dst = &d
	}
	return filter, true
}
