package port

import (
	"context"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
)

// RequisitionRepository defines persistence operations for the Requisition header
type RequisitionRepository interface {
	Create(ctx context.Context, req *entity.Requisition) error
	GetByID(ctx context.Context, id int64) (*entity.Requisition, error)
	GetByReference(ctx context.Context, referenceCode string) (*entity.Requisition, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error)

	// UpdateWorkflowState writes status, pointer, amounts and terminal stamps
	// only if the stored version equals req.Version. On success req.Version is
	// incremented; a stale version yields workflow.ErrVersionConflict.
	UpdateWorkflowState(ctx context.Context, req *entity.Requisition) error

	// UpdateDocumentState records the downstream purchase order outcome.
	UpdateDocumentState(ctx context.Context, id int64, status, reference, errorRef string, at *time.Time) error

	// ListFailedDocuments returns approved requisitions whose purchase order
	// failed, oldest first.
	ListFailedDocuments(ctx context.Context, limit int) ([]*entity.Requisition, error)
}

// AllocationRepository defines persistence operations for CostCenterAllocation
type AllocationRepository interface {
	CreateBatch(ctx context.Context, requisitionID int64, allocations []*entity.CostCenterAllocation) error
	GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.CostCenterAllocation, error)
}

// LineItemRepository defines persistence operations for LineItem
type LineItemRepository interface {
	CreateBatch(ctx context.Context, requisitionID int64, items []*entity.LineItem) error
	GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.LineItem, error)
}

// StepRepository defines persistence operations for WorkflowStep
type StepRepository interface {
	CreateBatch(ctx context.Context, requisitionID int64, steps []*entity.WorkflowStep) error
	GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.WorkflowStep, error)
	UpdateDecision(ctx context.Context, step *entity.WorkflowStep) error
	// SkipPending moves every pending step of the requisition to SKIPPED
	SkipPending(ctx context.Context, requisitionID int64, at time.Time) (int64, error)
}

// ApprovalRecordRepository is append-only
type ApprovalRecordRepository interface {
	Append(ctx context.Context, record *entity.ApprovalRecord) error
	GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.ApprovalRecord, error)
}

// PurchaseOrderRepository defines persistence operations for PurchaseOrder
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByRequisitionID(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*entity.PurchaseOrder, error)
	UpdateFilePath(ctx context.Context, id int64, path string) error
}

// SystemConfigRepository stores persisted configuration overrides
type SystemConfigRepository interface {
	Get(ctx context.Context, key string) (*entity.SystemConfig, error)
	Upsert(ctx context.Context, cfg *entity.SystemConfig) error
	ListByPrefix(ctx context.Context, prefix string) ([]*entity.SystemConfig, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
