package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is the downstream document generated once a requisition's
// approval chain completes.
type PurchaseOrder struct {
	ID             int64                `json:"id"`
	RequisitionID  int64                `json:"requisition_id"`
	OrderNumber    string               `json:"order_number"`
	RequisitionRef string               `json:"requisition_ref"`
	VendorCode     string               `json:"vendor_code,omitempty"`
	VendorName     string               `json:"vendor_name,omitempty"`
	Currency       string               `json:"currency"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	FilePath       string               `json:"file_path,omitempty"`
	Lines          []*PurchaseOrderLine `json:"lines"`
	CreatedAt      time.Time            `json:"created_at"`
}

// PurchaseOrderLine is a line copied from a requisition line item.
type PurchaseOrderLine struct {
	ID              int64           `json:"id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	LineNo          int             `json:"line_no"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxClass        string          `json:"tax_class"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// VendorDefaults carries the vendor copied onto a new purchase order.
type VendorDefaults struct {
	Code string
	Name string
}

// SystemConfig represents persisted configuration overrides
type SystemConfig struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
