package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// AllocationRepository implements port.AllocationRepository
type AllocationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *sql.DB, logger *zap.Logger) port.AllocationRepository {
	return &AllocationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts allocations in order. Sequence defaults to the position.
func (r *AllocationRepository) CreateBatch(ctx context.Context, requisitionID int64, allocations []*entity.CostCenterAllocation) error {
	query := `
		INSERT INTO cost_center_allocations (
			requisition_id, sequence, cost_center, amount,
			approver_name, approver_email, approver_role
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	exec := getExecutor(ctx, r.db)
	for i, a := range allocations {
		if a.Sequence == 0 {
			a.Sequence = i + 1
		}
		result, err := exec.ExecContext(ctx, query,
			requisitionID,
			a.Sequence,
			a.CostCenter,
			a.Amount,
			a.ApproverName,
			a.ApproverEmail,
			a.ApproverRole,
		)
		if err != nil {
			r.logger.Error("Failed to create allocation",
				zap.Int64("requisition_id", requisitionID),
				zap.String("cost_center", a.CostCenter),
				zap.Error(err))
			return fmt.Errorf("failed to create allocation: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		a.ID = id
		a.RequisitionID = requisitionID
	}
	return nil
}

// GetByRequisitionID retrieves allocations in sequence order
func (r *AllocationRepository) GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.CostCenterAllocation, error) {
	query := `
		SELECT id, requisition_id, sequence, cost_center, amount,
			approver_name, approver_email, approver_role
		FROM cost_center_allocations
		WHERE requisition_id = ?
		ORDER BY sequence ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requisitionID)
	if err != nil {
		r.logger.Error("Failed to get allocations", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*entity.CostCenterAllocation
	for rows.Next() {
		var a entity.CostCenterAllocation
		if err := rows.Scan(
			&a.ID,
			&a.RequisitionID,
			&a.Sequence,
			&a.CostCenter,
			&a.Amount,
			&a.ApproverName,
			&a.ApproverEmail,
			&a.ApproverRole,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, &a)
	}
	return allocations, rows.Err()
}

// Verify interface compliance
var _ port.AllocationRepository = (*AllocationRepository)(nil)
