package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// ApprovalRecordRepository implements port.ApprovalRecordRepository
type ApprovalRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRecordRepository creates a new approval record repository
func NewApprovalRecordRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRecordRepository {
	return &ApprovalRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts an audit record. Records are never updated.
func (r *ApprovalRecordRepository) Append(ctx context.Context, record *entity.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			requisition_id, step_order, approver_name, approver_email,
			approver_role, decision, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		record.RequisitionID,
		record.StepOrder,
		record.ApproverName,
		record.ApproverEmail,
		record.ApproverRole,
		record.Decision,
		record.Comments,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append approval record",
			zap.Int64("requisition_id", record.RequisitionID),
			zap.String("decision", record.Decision),
			zap.Error(err))
		return fmt.Errorf("failed to append approval record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByRequisitionID retrieves the audit trail in the order it was written
func (r *ApprovalRecordRepository) GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.ApprovalRecord, error) {
	query := `
		SELECT id, requisition_id, step_order, approver_name, approver_email,
			approver_role, decision, comments, created_at
		FROM approval_records
		WHERE requisition_id = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requisitionID)
	if err != nil {
		r.logger.Error("Failed to get approval records", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval records: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalRecord
	for rows.Next() {
		var record entity.ApprovalRecord
		if err := rows.Scan(
			&record.ID,
			&record.RequisitionID,
			&record.StepOrder,
			&record.ApproverName,
			&record.ApproverEmail,
			&record.ApproverRole,
			&record.Decision,
			&record.Comments,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.ApprovalRecordRepository = (*ApprovalRecordRepository)(nil)
