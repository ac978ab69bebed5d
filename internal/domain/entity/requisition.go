package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Requisition is the purchase requisition aggregate. It owns its allocations,
// line items, workflow steps and approval records.
type Requisition struct {
	ID            int64  `json:"id"`
	ReferenceCode string `json:"reference_code"`
	Title         string `json:"title"`

	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`

	// Money. TotalAmount is tax-inclusive and in Currency; BaseAmount is the
	// converted value used for threshold comparison. Both conversion fields
	// are null until a rate is known.
	Currency     string              `json:"currency"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
	BaseAmount   decimal.NullDecimal `json:"base_amount"`

	IsITRelated                  bool `json:"is_it_related"`
	IsFixedAsset                 bool `json:"is_fixed_asset"`
	HasPreSignedApproval         bool `json:"has_pre_signed_approval"`
	NoDownstreamDocumentRequired bool `json:"no_downstream_document_required"`

	// Workflow state
	Status           string     `json:"status"`
	CurrentStepOrder int        `json:"current_step_order"`
	TotalSteps       int        `json:"total_steps"`
	Version          int64      `json:"version"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`

	FinalApprover     string     `json:"final_approver,omitempty"`
	FinalApprovalDate *time.Time `json:"final_approval_date,omitempty"`

	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// Downstream purchase order
	DocumentStatus      string     `json:"document_status,omitempty"`
	DocumentReference   string     `json:"document_reference,omitempty"`
	DocumentGeneratedAt *time.Time `json:"document_generated_at,omitempty"`
	DocumentError       string     `json:"document_error,omitempty"`

	Allocations []*CostCenterAllocation `json:"allocations,omitempty"`
	Items       []*LineItem             `json:"items,omitempty"`
	Steps       []*WorkflowStep         `json:"steps,omitempty"`
	Records     []*ApprovalRecord       `json:"records,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CostCenterAllocation distributes part of the requisition total to a cost
// center and names the approver responsible for it.
type CostCenterAllocation struct {
	ID            int64           `json:"id"`
	RequisitionID int64           `json:"requisition_id"`
	Sequence      int             `json:"sequence"`
	CostCenter    string          `json:"cost_center"`
	Amount        decimal.Decimal `json:"amount"`
	ApproverName  string          `json:"approver_name"`
	ApproverEmail string          `json:"approver_email"`
	ApproverRole  string          `json:"approver_role"`
}

// LineItem is a requested good or service.
type LineItem struct {
	ID              int64           `json:"id"`
	RequisitionID   int64           `json:"requisition_id"`
	LineNo          int             `json:"line_no"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxClass        string          `json:"tax_class"`
	VendorCode      string          `json:"vendor_code,omitempty"`
	VendorName      string          `json:"vendor_name,omitempty"`
	IsFixedAsset    bool            `json:"is_fixed_asset"`
}

// LineTotal returns quantity * unit price less the discount percentage.
func (li *LineItem) LineTotal() decimal.Decimal {
	gross := li.Quantity.Mul(li.UnitPrice)
	if li.DiscountPercent.IsZero() {
		return gross
	}
	factor := decimal.NewFromInt(100).Sub(li.DiscountPercent).Div(decimal.NewFromInt(100))
	return gross.Mul(factor)
}

// IsTerminal reports whether the requisition reached Approved or Rejected.
func (r *Requisition) IsTerminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// AllocationTotal sums every cost center allocation.
func (r *Requisition) AllocationTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// StepsAt returns the steps sharing the given order, in insertion order.
func (r *Requisition) StepsAt(order int) []*WorkflowStep {
	var steps []*WorkflowStep
	for _, s := range r.Steps {
		if s.StepOrder == order {
			steps = append(steps, s)
		}
	}
	return steps
}

// PendingAt returns the pending steps at the given order.
func (r *Requisition) PendingAt(order int) []*WorkflowStep {
	var steps []*WorkflowStep
	for _, s := range r.StepsAt(order) {
		if s.Status == StepStatusPending {
			steps = append(steps, s)
		}
	}
	return steps
}

// NextApprovers returns the pending steps at the current pointer. It does not
// mutate the requisition.
func (r *Requisition) NextApprovers() []*WorkflowStep {
	if r.Status != StatusSubmitted {
		return nil
	}
	return r.PendingAt(r.CurrentStepOrder)
}
