package http

import (
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// AllocationRequest is one cost center share of a new requisition
type AllocationRequest struct {
	CostCenter    string          `json:"cost_center" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	ApproverName  string          `json:"approver_name"`
	ApproverEmail string          `json:"approver_email" binding:"required,email"`
}

// LineItemRequest is one purchased line of a new requisition
type LineItemRequest struct {
	Description     string          `json:"description" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxClass        string          `json:"tax_class"`
	VendorCode      string          `json:"vendor_code"`
	VendorName      string          `json:"vendor_name"`
	IsFixedAsset    bool            `json:"is_fixed_asset"`
}

// CreateRequisitionRequest opens a draft requisition
type CreateRequisitionRequest struct {
	Title          string          `json:"title" binding:"required"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email" binding:"required,email"`
	Currency       string          `json:"currency" binding:"required,len=3"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	IsITRelated                  bool `json:"is_it_related"`
	IsFixedAsset                 bool `json:"is_fixed_asset"`
	HasPreSignedApproval         bool `json:"has_pre_signed_approval"`
	NoDownstreamDocumentRequired bool `json:"no_downstream_document_required"`

	Allocations []AllocationRequest `json:"allocations" binding:"required,min=1,dive"`
	Items       []LineItemRequest   `json:"items" binding:"omitempty,dive"`
}

// toDraftInput maps the request onto the service input
func (r *CreateRequisitionRequest) toDraftInput() *service.DraftInput {
	in := &service.DraftInput{
		Title:                        r.Title,
		RequesterName:                r.RequesterName,
		RequesterEmail:               strings.TrimSpace(r.RequesterEmail),
		Currency:                     r.Currency,
		TotalAmount:                  r.TotalAmount,
		IsITRelated:                  r.IsITRelated,
		IsFixedAsset:                 r.IsFixedAsset,
		HasPreSignedApproval:         r.HasPreSignedApproval,
		NoDownstreamDocumentRequired: r.NoDownstreamDocumentRequired,
	}
	for _, a := range r.Allocations {
		in.Allocations = append(in.Allocations, &entity.CostCenterAllocation{
			CostCenter:    a.CostCenter,
			Amount:        a.Amount,
			ApproverName:  a.ApproverName,
			ApproverEmail: strings.TrimSpace(a.ApproverEmail),
		})
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, &entity.LineItem{
			Description:     it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			TaxClass:        it.TaxClass,
			VendorCode:      it.VendorCode,
			VendorName:      it.VendorName,
			IsFixedAsset:    it.IsFixedAsset,
		})
	}
	return in
}

// SubmitRequest names who submits a draft
type SubmitRequest struct {
	ActorEmail string `json:"actor_email" binding:"required,email"`
}

// DecisionRequest is one approver decision
type DecisionRequest struct {
	ApproverEmail string `json:"approver_email" binding:"required,email"`
	Decision      string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	Comments      string `json:"comments"`
}

// ModificationRequest parks a submitted requisition for rework
type ModificationRequest struct {
	ActorEmail string `json:"actor_email" binding:"required,email"`
	Reason     string `json:"reason" binding:"required"`
}

// ListRequisitionsRequest represents query parameters for listing requisitions
type ListRequisitionsRequest struct {
	Status    string `form:"status"`
	Reference string `form:"reference"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// DecisionResponse summarizes what a decision did
type DecisionResponse struct {
	Requisition   *entity.Requisition    `json:"requisition"`
	Advanced      bool                   `json:"advanced"`
	Completed     bool                   `json:"completed"`
	Rejected      bool                   `json:"rejected"`
	NextApprovers []*entity.WorkflowStep `json:"next_approvers"`
	PurchaseOrder *entity.PurchaseOrder  `json:"purchase_order,omitempty"`
	DocumentError string                 `json:"document_error,omitempty"`
}

// ConfigValueRequest sets a threshold or exchange rate override
type ConfigValueRequest struct {
	Value decimal.Decimal `json:"value"`
}

// ThresholdsResponse shows resolved thresholds and stored overrides
type ThresholdsResponse struct {
	BaseCurrency string                 `json:"base_currency"`
	Thresholds   map[string]string      `json:"thresholds"`
	Missing      []string               `json:"missing,omitempty"`
	Overrides    []*entity.SystemConfig `json:"overrides"`
}
