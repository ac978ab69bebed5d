package workflow

import (
	"context"

	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// ProcessStepCommand is one approver decision. The acting identity is the
// approver email; it is never read from ambient state.
type ProcessStepCommand struct {
	RequisitionID int64
	ApproverEmail string
	Decision      string
	Comments      string
}

// StepOutcome describes what a decision did to the requisition
type StepOutcome struct {
	Requisition   *entity.Requisition
	Step          *entity.WorkflowStep
	Advanced      bool
	Completed     bool
	Rejected      bool
	NextApprovers []*entity.WorkflowStep
	PurchaseOrder *entity.PurchaseOrder
	// DocumentError is set when the purchase order failed after approval.
	// The approval itself stands.
	DocumentError string
}

// DocumentGenerator creates the downstream purchase order exactly once
type DocumentGenerator interface {
	Generate(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
}

// WorkflowEngine drives requisitions through the approval chain
type WorkflowEngine interface {
	// Submit generates and persists the step list and moves DRAFT to SUBMITTED
	Submit(ctx context.Context, requisitionID int64, actorEmail string) (*entity.Requisition, error)

	// ProcessStep applies one approver decision
	ProcessStep(ctx context.Context, cmd ProcessStepCommand) (*StepOutcome, error)

	// RequestModification parks a submitted requisition outside the workflow
	RequestModification(ctx context.Context, requisitionID int64, actorEmail, reason string) error

	// GetStateMachine returns a state machine positioned at the requisition's status
	GetStateMachine(ctx context.Context, requisitionID int64) (domainwf.StateMachine, error)

	// GetCurrentState returns the current state of a requisition
	GetCurrentState(ctx context.Context, requisitionID int64) (domainwf.State, error)
}
