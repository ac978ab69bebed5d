package purchaseorder

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedBuilder() *Builder {
	b := NewBuilder("", zap.NewNop())
	b.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return b
}

func sampleRequisition() *entity.Requisition {
	return &entity.Requisition{ID: 9, ReferenceCode: "PR-20260302-ABCDEF12", Currency: "sgd"}
}

func TestBuilder_CreatePurchaseOrder(t *testing.T) {
	items := []*entity.LineItem{
		{Description: "Desk", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(400), TaxClass: "SR"},
		{LineNo: 5, Description: "Chair", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("99.99"), DiscountPercent: decimal.NewFromInt(10)},
	}

	po, err := fixedBuilder().CreatePurchaseOrder(context.Background(), items, entity.VendorDefaults{Code: "V-1", Name: "Office Co"}, sampleRequisition())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^PO-20260302-[0-9A-F]{8}$`), po.OrderNumber)
	assert.Equal(t, int64(9), po.RequisitionID)
	assert.Equal(t, "PR-20260302-ABCDEF12", po.RequisitionRef)
	assert.Equal(t, "SGD", po.Currency)
	assert.Equal(t, "V-1", po.VendorCode)

	require.Len(t, po.Lines, 2)
	assert.Equal(t, 1, po.Lines[0].LineNo)
	assert.Equal(t, 5, po.Lines[1].LineNo)
	assert.Equal(t, "269.97", po.Lines[1].LineTotal.StringFixed(2))
	assert.Equal(t, "669.97", po.TotalAmount.StringFixed(2))
}

func TestBuilder_MissingPrerequisite(t *testing.T) {
	b := fixedBuilder()
	ctx := context.Background()
	items := []*entity.LineItem{{Description: "Desk", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}}

	_, err := b.CreatePurchaseOrder(ctx, nil, entity.VendorDefaults{}, sampleRequisition())
	assert.ErrorIs(t, err, domainwf.ErrMissingPrerequisite)

	_, err = b.CreatePurchaseOrder(ctx, items, entity.VendorDefaults{}, nil)
	assert.ErrorIs(t, err, domainwf.ErrMissingPrerequisite)

	req := sampleRequisition()
	req.Currency = " "
	_, err = b.CreatePurchaseOrder(ctx, items, entity.VendorDefaults{}, req)
	assert.ErrorIs(t, err, domainwf.ErrMissingPrerequisite)
}

func TestBuilder_CustomPrefix(t *testing.T) {
	b := NewBuilder("ACME", zap.NewNop())
	items := []*entity.LineItem{{Description: "Pen", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}}

	po, err := b.CreatePurchaseOrder(context.Background(), items, entity.VendorDefaults{}, sampleRequisition())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ACME-\d{8}-[0-9A-F]{8}$`), po.OrderNumber)
}
