package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// LineItemRepository implements port.LineItemRepository
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) port.LineItemRepository {
	return &LineItemRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts line items. LineNo defaults to the position.
func (r *LineItemRepository) CreateBatch(ctx context.Context, requisitionID int64, items []*entity.LineItem) error {
	query := `
		INSERT INTO line_items (
			requisition_id, line_no, description, quantity, unit_price,
			discount_percent, tax_class, vendor_code, vendor_name, is_fixed_asset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := getExecutor(ctx, r.db)
	for i, item := range items {
		if item.LineNo == 0 {
			item.LineNo = i + 1
		}
		result, err := exec.ExecContext(ctx, query,
			requisitionID,
			item.LineNo,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.DiscountPercent,
			item.TaxClass,
			item.VendorCode,
			item.VendorName,
			item.IsFixedAsset,
		)
		if err != nil {
			r.logger.Error("Failed to create line item",
				zap.Int64("requisition_id", requisitionID),
				zap.Int("line_no", item.LineNo),
				zap.Error(err))
			return fmt.Errorf("failed to create line item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.RequisitionID = requisitionID
	}
	return nil
}

// GetByRequisitionID retrieves line items in line order
func (r *LineItemRepository) GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.LineItem, error) {
	query := `
		SELECT id, requisition_id, line_no, description, quantity, unit_price,
			discount_percent, tax_class, vendor_code, vendor_name, is_fixed_asset
		FROM line_items
		WHERE requisition_id = ?
		ORDER BY line_no ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requisitionID)
	if err != nil {
		r.logger.Error("Failed to get line items", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	var items []*entity.LineItem
	for rows.Next() {
		var item entity.LineItem
		if err := rows.Scan(
			&item.ID,
			&item.RequisitionID,
			&item.LineNo,
			&item.Description,
			&item.Quantity,
			&item.UnitPrice,
			&item.DiscountPercent,
			&item.TaxClass,
			&item.VendorCode,
			&item.VendorName,
			&item.IsFixedAsset,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Verify interface compliance
var _ port.LineItemRepository = (*LineItemRepository)(nil)
