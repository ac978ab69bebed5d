package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const purchaseOrderColumns = `
	id, requisition_id, order_number, requisition_ref, vendor_code, vendor_name,
	currency, total_amount, file_path, created_at`

// PurchaseOrderRepository implements port.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the order and its lines. requisition_id is unique, so a
// second order for the same requisition fails.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			requisition_id, order_number, requisition_ref, vendor_code, vendor_name,
			currency, total_amount, file_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now()
	}

	exec := getExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		po.RequisitionID,
		po.OrderNumber,
		po.RequisitionRef,
		po.VendorCode,
		po.VendorName,
		po.Currency,
		po.TotalAmount,
		po.FilePath,
		po.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order",
			zap.Int64("requisition_id", po.RequisitionID),
			zap.String("order_number", po.OrderNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	po.ID = id

	lineQuery := `
		INSERT INTO purchase_order_lines (
			purchase_order_id, line_no, description, quantity, unit_price,
			discount_percent, tax_class, line_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, line := range po.Lines {
		result, err := exec.ExecContext(ctx, lineQuery,
			po.ID,
			line.LineNo,
			line.Description,
			line.Quantity,
			line.UnitPrice,
			line.DiscountPercent,
			line.TaxClass,
			line.LineTotal,
		)
		if err != nil {
			r.logger.Error("Failed to create purchase order line",
				zap.String("order_number", po.OrderNumber),
				zap.Int("line_no", line.LineNo),
				zap.Error(err))
			return fmt.Errorf("failed to create purchase order line: %w", err)
		}
		lineID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		line.ID = lineID
		line.PurchaseOrderID = po.ID
	}
	return nil
}

// GetByRequisitionID retrieves the order generated for a requisition
func (r *PurchaseOrderRepository) GetByRequisitionID(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE requisition_id = ?`
	return r.getOne(ctx, query, requisitionID)
}

// GetByOrderNumber retrieves an order by its number
func (r *PurchaseOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE order_number = ?`
	return r.getOne(ctx, query, orderNumber)
}

// UpdateFilePath records where the rendered workbook was stored
func (r *PurchaseOrderRepository) UpdateFilePath(ctx context.Context, id int64, path string) error {
	query := `UPDATE purchase_orders SET file_path = ? WHERE id = ?`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, path, id)
	if err != nil {
		r.logger.Error("Failed to update purchase order file path", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update purchase order: %w", err)
	}
	return nil
}

func (r *PurchaseOrderRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.PurchaseOrder, error) {
	exec := getExecutor(ctx, r.db)

	var po entity.PurchaseOrder
	err := exec.QueryRowContext(ctx, query, arg).Scan(
		&po.ID,
		&po.RequisitionID,
		&po.OrderNumber,
		&po.RequisitionRef,
		&po.VendorCode,
		&po.VendorName,
		&po.Currency,
		&po.TotalAmount,
		&po.FilePath,
		&po.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	lines, err := r.getLines(ctx, exec, po.ID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return &po, nil
}

func (r *PurchaseOrderRepository) getLines(ctx context.Context, exec sqlite.Executor, orderID int64) ([]*entity.PurchaseOrderLine, error) {
	query := `
		SELECT id, purchase_order_id, line_no, description, quantity, unit_price,
			discount_percent, tax_class, line_total
		FROM purchase_order_lines
		WHERE purchase_order_id = ?
		ORDER BY line_no ASC, id ASC
	`

	rows, err := exec.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase order lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.PurchaseOrderLine
	for rows.Next() {
		var line entity.PurchaseOrderLine
		if err := rows.Scan(
			&line.ID,
			&line.PurchaseOrderID,
			&line.LineNo,
			&line.Description,
			&line.Quantity,
			&line.UnitPrice,
			&line.DiscountPercent,
			&line.TaxClass,
			&line.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		lines = append(lines, &line)
	}
	return lines, rows.Err()
}

// Verify interface compliance
var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
