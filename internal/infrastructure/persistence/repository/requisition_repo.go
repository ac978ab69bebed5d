package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

const requisitionColumns = `
	id, reference_code, title, requester_name, requester_email,
	currency, total_amount, exchange_rate, base_amount,
	is_it_related, is_fixed_asset, has_pre_signed_approval, no_downstream_document_required,
	status, current_step_order, total_steps, version, submitted_at,
	final_approver, final_approval_date, rejected_by, rejected_at, rejection_reason,
	document_status, document_reference, document_generated_at, document_error,
	created_at, updated_at`

// RequisitionRepository implements port.RequisitionRepository
type RequisitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *sql.DB, logger *zap.Logger) port.RequisitionRepository {
	return &RequisitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a requisition header; allocations and items are stored separately
func (r *RequisitionRepository) Create(ctx context.Context, req *entity.Requisition) error {
	query := `
		INSERT INTO requisitions (
			reference_code, title, requester_name, requester_email,
			currency, total_amount, exchange_rate, base_amount,
			is_it_related, is_fixed_asset, has_pre_signed_approval, no_downstream_document_required,
			status, current_step_order, total_steps, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if req.Status == "" {
		req.Status = entity.StatusDraft
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.ReferenceCode,
		req.Title,
		req.RequesterName,
		req.RequesterEmail,
		req.Currency,
		req.TotalAmount,
		req.ExchangeRate,
		req.BaseAmount,
		req.IsITRelated,
		req.IsFixedAsset,
		req.HasPreSignedApproval,
		req.NoDownstreamDocumentRequired,
		req.Status,
		req.CurrentStepOrder,
		req.TotalSteps,
		req.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create requisition", zap.String("reference", req.ReferenceCode), zap.Error(err))
		return fmt.Errorf("failed to create requisition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

// GetByID retrieves a requisition header by ID
func (r *RequisitionRepository) GetByID(ctx context.Context, id int64) (*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE id = ?`

	req, err := scanRequisition(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get requisition by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// GetByReference retrieves a requisition header by its reference code
func (r *RequisitionRepository) GetByReference(ctx context.Context, referenceCode string) (*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE reference_code = ?`

	req, err := scanRequisition(getExecutor(ctx, r.db).QueryRowContext(ctx, query, referenceCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get requisition by reference", zap.String("reference", referenceCode), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// List retrieves requisition headers, newest first. An empty status lists all.
func (r *RequisitionRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requisitions", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var reqs []*entity.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListFailedDocuments returns approved requisitions with a failed purchase order
func (r *RequisitionRepository) ListFailedDocuments(ctx context.Context, limit int) ([]*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions
		WHERE status = ? AND document_status = ?
		ORDER BY updated_at ASC, id ASC LIMIT ?`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, entity.StatusApproved, entity.DocumentStatusFailed, limit)
	if err != nil {
		r.logger.Error("Failed to list failed documents", zap.Error(err))
		return nil, fmt.Errorf("failed to list failed documents: %w", err)
	}
	defer rows.Close()

	var reqs []*entity.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpdateWorkflowState writes the workflow columns guarded by the version
// column. Document columns are owned by UpdateDocumentState.
func (r *RequisitionRepository) UpdateWorkflowState(ctx context.Context, req *entity.Requisition) error {
	query := `
		UPDATE requisitions SET
			status = ?, current_step_order = ?, total_steps = ?,
			exchange_rate = ?, base_amount = ?, submitted_at = ?,
			final_approver = ?, final_approval_date = ?,
			rejected_by = ?, rejected_at = ?, rejection_reason = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	now := time.Now()
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.Status,
		req.CurrentStepOrder,
		req.TotalSteps,
		req.ExchangeRate,
		req.BaseAmount,
		nullTime(req.SubmittedAt),
		req.FinalApprover,
		nullTime(req.FinalApprovalDate),
		req.RejectedBy,
		nullTime(req.RejectedAt),
		req.RejectionReason,
		now,
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow state", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Stale requisition version",
			zap.Int64("id", req.ID),
			zap.Int64("version", req.Version))
		return fmt.Errorf("%w: requisition %d at version %d", domainwf.ErrVersionConflict, req.ID, req.Version)
	}

	req.Version++
	req.UpdatedAt = now
	return nil
}

// UpdateDocumentState records the purchase order outcome
func (r *RequisitionRepository) UpdateDocumentState(ctx context.Context, id int64, status, reference, errorRef string, at *time.Time) error {
	query := `
		UPDATE requisitions SET
			document_status = ?, document_reference = ?, document_error = ?,
			document_generated_at = ?, updated_at = ?
		WHERE id = ?
	`
	args := []interface{}{status, reference, errorRef, nullTime(at), time.Now(), id}

	// A failure never replaces a generated order.
	if status == entity.DocumentStatusFailed {
		query += ` AND document_status <> ?`
		args = append(args, entity.DocumentStatusGenerated)
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update document state", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update document state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequisition(row rowScanner) (*entity.Requisition, error) {
	var req entity.Requisition
	var submittedAt, finalApprovalDate, rejectedAt, documentGeneratedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.ReferenceCode,
		&req.Title,
		&req.RequesterName,
		&req.RequesterEmail,
		&req.Currency,
		&req.TotalAmount,
		&req.ExchangeRate,
		&req.BaseAmount,
		&req.IsITRelated,
		&req.IsFixedAsset,
		&req.HasPreSignedApproval,
		&req.NoDownstreamDocumentRequired,
		&req.Status,
		&req.CurrentStepOrder,
		&req.TotalSteps,
		&req.Version,
		&submittedAt,
		&req.FinalApprover,
		&finalApprovalDate,
		&req.RejectedBy,
		&rejectedAt,
		&req.RejectionReason,
		&req.DocumentStatus,
		&req.DocumentReference,
		&documentGeneratedAt,
		&req.DocumentError,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.SubmittedAt = timePtr(submittedAt)
	req.FinalApprovalDate = timePtr(finalApprovalDate)
	req.RejectedAt = timePtr(rejectedAt)
	req.DocumentGeneratedAt = timePtr(documentGeneratedAt)
	return &req, nil
}

// Verify interface compliance
var _ port.RequisitionRepository = (*RequisitionRepository)(nil)
