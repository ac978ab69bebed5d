package port

import (
	"context"

	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ThresholdResolver resolves named thresholds and exchange rates. Both fail
// with workflow.ErrConfigurationMissing instead of defaulting.
type ThresholdResolver interface {
	GetThreshold(ctx context.Context, name string) (decimal.Decimal, error)
	GetExchangeRate(ctx context.Context, currency string) (decimal.Decimal, error)
	BaseCurrency() string
}

// Approver is a resolved approver identity
type Approver struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RoleDirectory maps a role label to the person currently holding it
type RoleDirectory interface {
	Resolve(ctx context.Context, role string) (Approver, error)
}

// NotificationDispatcher informs approvers that a step awaits them.
// Callers log failures and never roll back because of them.
type NotificationDispatcher interface {
	NotifyNextApprover(ctx context.Context, req *entity.Requisition, approverEmail string) error
}

// DocumentSink creates the purchase order for an approved requisition
type DocumentSink interface {
	CreatePurchaseOrder(ctx context.Context, items []*entity.LineItem, vendor entity.VendorDefaults, req *entity.Requisition) (*entity.PurchaseOrder, error)
}

// DocumentExporter renders a purchase order to a file and returns its path
type DocumentExporter interface {
	Export(ctx context.Context, po *entity.PurchaseOrder) (string, error)
}

// MessageSender delivers a text message to a person identified by email
type MessageSender interface {
	SendText(ctx context.Context, email, content string) (string, error)
}

// WorkflowMetrics records workflow outcomes. Implementations must be safe for concurrent use.
type WorkflowMetrics interface {
	ObserveDecision(decision string)
	ObserveAdvance()
	ObserveCompletion(status string)
	ObservePurchaseOrder(result string)
}
