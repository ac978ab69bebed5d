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

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new workflow step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts the generated chain for a requisition
func (r *StepRepository) CreateBatch(ctx context.Context, requisitionID int64, steps []*entity.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (
			requisition_id, step_order, approver_name, approver_email, approver_role,
			department, status, is_required, is_parallel, action_date, comments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := getExecutor(ctx, r.db)
	for _, step := range steps {
		if step.Status == "" {
			step.Status = entity.StepStatusPending
		}
		result, err := exec.ExecContext(ctx, query,
			requisitionID,
			step.StepOrder,
			step.ApproverName,
			step.ApproverEmail,
			step.ApproverRole,
			step.Department,
			step.Status,
			step.IsRequired,
			step.IsParallel,
			nullTime(step.ActionDate),
			step.Comments,
		)
		if err != nil {
			r.logger.Error("Failed to create workflow step",
				zap.Int64("requisition_id", requisitionID),
				zap.Int("step_order", step.StepOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create workflow step: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
		step.RequisitionID = requisitionID
	}
	return nil
}

// GetByRequisitionID retrieves steps ordered by step order, then insertion
func (r *StepRepository) GetByRequisitionID(ctx context.Context, requisitionID int64) ([]*entity.WorkflowStep, error) {
	query := `
		SELECT id, requisition_id, step_order, approver_name, approver_email, approver_role,
			department, status, is_required, is_parallel, action_date, comments
		FROM workflow_steps
		WHERE requisition_id = ?
		ORDER BY step_order ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requisitionID)
	if err != nil {
		r.logger.Error("Failed to get workflow steps", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.WorkflowStep
	for rows.Next() {
		var step entity.WorkflowStep
		var actionDate sql.NullTime
		if err := rows.Scan(
			&step.ID,
			&step.RequisitionID,
			&step.StepOrder,
			&step.ApproverName,
			&step.ApproverEmail,
			&step.ApproverRole,
			&step.Department,
			&step.Status,
			&step.IsRequired,
			&step.IsParallel,
			&actionDate,
			&step.Comments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		step.ActionDate = timePtr(actionDate)
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

// UpdateDecision stores a decision on a step that is still pending
func (r *StepRepository) UpdateDecision(ctx context.Context, step *entity.WorkflowStep) error {
	query := `
		UPDATE workflow_steps
		SET status = ?, action_date = ?, comments = ?
		WHERE id = ? AND status = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		step.Status,
		nullTime(step.ActionDate),
		step.Comments,
		step.ID,
		entity.StepStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to update step decision", zap.Int64("step_id", step.ID), zap.Error(err))
		return fmt.Errorf("failed to update step decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step %d is no longer pending", step.ID)
	}
	return nil
}

// SkipPending marks every pending step of the requisition SKIPPED
func (r *StepRepository) SkipPending(ctx context.Context, requisitionID int64, at time.Time) (int64, error) {
	query := `
		UPDATE workflow_steps
		SET status = ?, action_date = ?
		WHERE requisition_id = ? AND status = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entity.StepStatusSkipped,
		at,
		requisitionID,
		entity.StepStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to skip pending steps", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return 0, fmt.Errorf("failed to skip pending steps: %w", err)
	}
	return result.RowsAffected()
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
