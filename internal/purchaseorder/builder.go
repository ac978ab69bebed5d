// Package purchaseorder builds purchase orders from approved requisitions and
// renders them as xlsx workbooks.
package purchaseorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Builder creates purchase orders in memory. Persisting them is the caller's job.
type Builder struct {
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewBuilder creates a Builder that numbers orders as <prefix>-YYYYMMDD-XXXXXXXX
func NewBuilder(prefix string, logger *zap.Logger) *Builder {
	if prefix == "" {
		prefix = "PO"
	}
	return &Builder{
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// CreatePurchaseOrder copies every line item onto a new order
func (b *Builder) CreatePurchaseOrder(ctx context.Context, items []*entity.LineItem, vendor entity.VendorDefaults, req *entity.Requisition) (*entity.PurchaseOrder, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: requisition is required", domainwf.ErrMissingPrerequisite)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: requisition %s has no line items", domainwf.ErrMissingPrerequisite, req.ReferenceCode)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, fmt.Errorf("%w: requisition %s has no currency", domainwf.ErrMissingPrerequisite, req.ReferenceCode)
	}

	now := b.now()
	po := &entity.PurchaseOrder{
		RequisitionID:  req.ID,
		OrderNumber:    b.orderNumber(now),
		RequisitionRef: req.ReferenceCode,
		VendorCode:     vendor.Code,
		VendorName:     vendor.Name,
		Currency:       strings.ToUpper(req.Currency),
		CreatedAt:      now,
	}

	total := decimal.Zero
	for i, item := range items {
		lineTotal := item.LineTotal().Round(2)
		total = total.Add(lineTotal)

		lineNo := item.LineNo
		if lineNo == 0 {
			lineNo = i + 1
		}
		po.Lines = append(po.Lines, &entity.PurchaseOrderLine{
			LineNo:          lineNo,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxClass:        item.TaxClass,
			LineTotal:       lineTotal,
		})
	}
	po.TotalAmount = total

	b.logger.Debug("Purchase order built",
		zap.String("order_number", po.OrderNumber),
		zap.String("requisition", req.ReferenceCode),
		zap.Int("lines", len(po.Lines)),
		zap.String("total", total.StringFixed(2)),
	)
	return po, nil
}

func (b *Builder) orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", b.prefix, now.Format("20060102"), suffix)
}

var _ port.DocumentSink = (*Builder)(nil)
