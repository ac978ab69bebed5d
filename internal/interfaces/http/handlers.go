package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/application/workflow"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// HealthFunc reports overall health and per-component detail
type HealthFunc func() (bool, interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	requisitions   service.RequisitionService
	purchaseOrders service.PurchaseOrderService
	thresholds     service.ThresholdService
	health         HealthFunc
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requisitions service.RequisitionService,
	purchaseOrders service.PurchaseOrderService,
	thresholds service.ThresholdService,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		requisitions:   requisitions,
		purchaseOrders: purchaseOrders,
		thresholds:     thresholds,
		health:         health,
		logger:         logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, detail := true, interface{}(nil)
	if h.health != nil {
		healthy, detail = h.health()
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: detail,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: response})
}

// CreateRequisition handles POST /api/requisitions
func (h *Handlers) CreateRequisition(c *gin.Context) {
	var req CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	created, err := h.requisitions.CreateDraft(c.Request.Context(), req.toDraftInput())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListRequisitions handles GET /api/requisitions. A reference query
// parameter looks up a single requisition instead.
func (h *Handlers) ListRequisitions(c *gin.Context) {
	var req ListRequisitionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	if ref := strings.TrimSpace(req.Reference); ref != "" {
		found, err := h.requisitions.GetByReference(c.Request.Context(), ref)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: []*entity.Requisition{found}})
		return
	}

	reqs, err := h.requisitions.List(c.Request.Context(), req.Status, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"requisitions": reqs,
			"count":        len(reqs),
		},
	})
}

// GetRequisition handles GET /api/requisitions/:id
func (h *Handlers) GetRequisition(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}

	req, err := h.requisitions.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// SubmitRequisition handles POST /api/requisitions/:id/submit
func (h *Handlers) SubmitRequisition(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	req, err := h.requisitions.Submit(c.Request.Context(), id, body.ActorEmail)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// RecordDecision handles POST /api/requisitions/:id/decisions
func (h *Handlers) RecordDecision(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	outcome, err := h.requisitions.ProcessStep(c.Request.Context(), workflow.ProcessStepCommand{
		RequisitionID: id,
		ApproverEmail: body.ApproverEmail,
		Decision:      body.Decision,
		Comments:      body.Comments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	next := outcome.NextApprovers
	if next == nil {
		next = []*entity.WorkflowStep{}
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: DecisionResponse{
			Requisition:   outcome.Requisition,
			Advanced:      outcome.Advanced,
			Completed:     outcome.Completed,
			Rejected:      outcome.Rejected,
			NextApprovers: next,
			PurchaseOrder: outcome.PurchaseOrder,
			DocumentError: outcome.DocumentError,
		},
	})
}

// RequestModification handles POST /api/requisitions/:id/modification
func (h *Handlers) RequestModification(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	var body ModificationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.requisitions.RequestModification(c.Request.Context(), id, body.ActorEmail, body.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListSteps handles GET /api/requisitions/:id/steps
func (h *Handlers) ListSteps(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	steps, err := h.requisitions.Steps(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// NextApprovers handles GET /api/requisitions/:id/next-approvers
func (h *Handlers) NextApprovers(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	steps, err := h.requisitions.NextApprovers(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// AuditTrail handles GET /api/requisitions/:id/audit-trail
func (h *Handlers) AuditTrail(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	records, err := h.requisitions.AuditTrail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetPurchaseOrder handles GET /api/requisitions/:id/purchase-order
func (h *Handlers) GetPurchaseOrder(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	po, err := h.purchaseOrders.GetByRequisition(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// RetryPurchaseOrder handles POST /api/requisitions/:id/purchase-order/retry
func (h *Handlers) RetryPurchaseOrder(c *gin.Context) {
	id, ok := h.requisitionID(c)
	if !ok {
		return
	}
	po, err := h.purchaseOrders.Retry(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// GetThresholds handles GET /api/config/thresholds
func (h *Handlers) GetThresholds(c *gin.Context) {
	ctx := c.Request.Context()
	resp := ThresholdsResponse{
		BaseCurrency: h.thresholds.BaseCurrency(),
		Thresholds:   make(map[string]string),
	}

	for _, name := range []string{entity.ThresholdFixedAssetCFO, entity.ThresholdCEO} {
		value, err := h.thresholds.GetThreshold(ctx, name)
		if err != nil {
			resp.Missing = append(resp.Missing, name)
			continue
		}
		resp.Thresholds[name] = value.String()
	}

	overrides, err := h.thresholds.ListOverrides(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp.Overrides = overrides

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// SetThreshold handles PUT /api/config/thresholds/:name
func (h *Handlers) SetThreshold(c *gin.Context) {
	var body ConfigValueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	name := c.Param("name")
	if err := h.thresholds.SetThreshold(c.Request.Context(), name, body.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"name": name, "value": body.Value.String()}})
}

// GetExchangeRate handles GET /api/config/exchange-rates/:currency
func (h *Handlers) GetExchangeRate(c *gin.Context) {
	code := strings.ToUpper(c.Param("currency"))
	rate, err := h.thresholds.GetExchangeRate(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"currency": code, "rate": rate.String()}})
}

// SetExchangeRate handles PUT /api/config/exchange-rates/:currency
func (h *Handlers) SetExchangeRate(c *gin.Context) {
	var body ConfigValueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	code := strings.ToUpper(c.Param("currency"))
	if err := h.thresholds.SetExchangeRate(c.Request.Context(), code, body.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"currency": code, "rate": body.Value.String()}})
}

// requisitionID parses the :id path parameter, writing a 400 on failure
func (h *Handlers) requisitionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, domainwf.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}
