package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/application/workflow"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/eddyoasis/procurement-workflow/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var allocationTolerance = decimal.NewFromFloat(0.01)

// DraftInput carries everything needed to open a requisition
type DraftInput struct {
	Title          string
	RequesterName  string
	RequesterEmail string
	Currency       string
	TotalAmount    decimal.Decimal

	IsITRelated                  bool
	IsFixedAsset                 bool
	HasPreSignedApproval         bool
	NoDownstreamDocumentRequired bool

	Allocations []*entity.CostCenterAllocation
	Items       []*entity.LineItem
}

// RequisitionService manages requisitions around the approval engine
type RequisitionService interface {
	CreateDraft(ctx context.Context, in *DraftInput) (*entity.Requisition, error)
	Submit(ctx context.Context, id int64, actorEmail string) (*entity.Requisition, error)
	ProcessStep(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error)
	RequestModification(ctx context.Context, id int64, actorEmail, reason string) error

	Get(ctx context.Context, id int64) (*entity.Requisition, error)
	GetByReference(ctx context.Context, referenceCode string) (*entity.Requisition, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error)
	Steps(ctx context.Context, id int64) ([]*entity.WorkflowStep, error)
	NextApprovers(ctx context.Context, id int64) ([]*entity.WorkflowStep, error)
	AuditTrail(ctx context.Context, id int64) ([]*entity.ApprovalRecord, error)
}

type requisitionServiceImpl struct {
	reqRepo    port.RequisitionRepository
	allocRepo  port.AllocationRepository
	itemRepo   port.LineItemRepository
	stepRepo   port.StepRepository
	recordRepo port.ApprovalRecordRepository
	txManager  port.TransactionManager
	engine     workflow.WorkflowEngine
	logger     Logger
}

// NewRequisitionService creates a new RequisitionService
func NewRequisitionService(
	repos workflow.Repositories,
	txManager port.TransactionManager,
	engine workflow.WorkflowEngine,
	logger Logger,
) RequisitionService {
	return &requisitionServiceImpl{
		reqRepo:    repos.Requisitions,
		allocRepo:  repos.Allocations,
		itemRepo:   repos.Items,
		stepRepo:   repos.Steps,
		recordRepo: repos.Records,
		txManager:  txManager,
		engine:     engine,
		logger:     logger,
	}
}

// CreateDraft validates the input and stores a DRAFT requisition with its
// allocations and line items.
func (s *requisitionServiceImpl) CreateDraft(ctx context.Context, in *DraftInput) (*entity.Requisition, error) {
	if err := validateDraft(in); err != nil {
		return nil, err
	}

	now := time.Now()
	req := &entity.Requisition{
		ReferenceCode:                newReferenceCode(now),
		Title:                        utils.SanitizeString(in.Title),
		RequesterName:                strings.TrimSpace(in.RequesterName),
		RequesterEmail:               strings.TrimSpace(in.RequesterEmail),
		Currency:                     strings.ToUpper(strings.TrimSpace(in.Currency)),
		TotalAmount:                  in.TotalAmount,
		IsITRelated:                  in.IsITRelated,
		IsFixedAsset:                 in.IsFixedAsset,
		HasPreSignedApproval:         in.HasPreSignedApproval,
		NoDownstreamDocumentRequired: in.NoDownstreamDocumentRequired,
		Status:                       entity.StatusDraft,
		Allocations:                  in.Allocations,
		Items:                        in.Items,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}

	for i, a := range req.Allocations {
		a.Sequence = i + 1
		a.CostCenter = strings.TrimSpace(a.CostCenter)
		a.ApproverEmail = strings.TrimSpace(a.ApproverEmail)
	}
	for i, item := range req.Items {
		item.LineNo = i + 1
		// One fixed-asset line makes the whole requisition a fixed-asset purchase.
		if item.IsFixedAsset {
			req.IsFixedAsset = true
		}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.reqRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}
		if err := s.allocRepo.CreateBatch(txCtx, req.ID, req.Allocations); err != nil {
			return fmt.Errorf("create allocations: %w", err)
		}
		if len(req.Items) > 0 {
			if err := s.itemRepo.CreateBatch(txCtx, req.ID, req.Items); err != nil {
				return fmt.Errorf("create line items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create requisition", "error", err, "title", req.Title)
		return nil, err
	}

	s.logger.Info("Requisition drafted", "id", req.ID, "reference", req.ReferenceCode, "total", req.TotalAmount.String(), "currency", req.Currency)
	return req, nil
}

func validateDraft(in *DraftInput) error {
	if in == nil {
		return domainwf.NewValidationError("requisition", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return domainwf.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(in.RequesterEmail) == "" {
		return domainwf.NewValidationError("requester_email", "is required")
	}
	if err := utils.ValidateEmail(strings.TrimSpace(in.RequesterEmail)); err != nil {
		return domainwf.NewValidationError("requester_email", err.Error())
	}
	if _, err := utils.ValidateCurrencyCode(in.Currency); err != nil {
		return domainwf.NewValidationError("currency", "must be an ISO 4217 code")
	}
	if !in.TotalAmount.IsPositive() {
		return domainwf.NewValidationError("total_amount", "must be positive")
	}
	if len(in.Allocations) == 0 {
		return domainwf.NewValidationError("allocations", "at least one cost center allocation is required")
	}

	sum := decimal.Zero
	for i, a := range in.Allocations {
		field := fmt.Sprintf("allocations[%d]", i)
		if a == nil {
			return domainwf.NewValidationError(field, "is empty")
		}
		if strings.TrimSpace(a.CostCenter) == "" {
			return domainwf.NewValidationError(field+".cost_center", "is required")
		}
		if strings.TrimSpace(a.ApproverName) == "" || strings.TrimSpace(a.ApproverEmail) == "" {
			return domainwf.NewValidationError(field+".approver", "name and email are required")
		}
		if !a.Amount.IsPositive() {
			return domainwf.NewValidationError(field+".amount", "must be positive")
		}
		sum = sum.Add(a.Amount)
	}
	if sum.Sub(in.TotalAmount).Abs().GreaterThan(allocationTolerance) {
		return domainwf.NewValidationError("allocations",
			fmt.Sprintf("sum %s does not match total %s", sum.StringFixed(2), in.TotalAmount.StringFixed(2)))
	}

	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item == nil || strings.TrimSpace(item.Description) == "" {
			return domainwf.NewValidationError(field+".description", "is required")
		}
		if !item.Quantity.IsPositive() {
			return domainwf.NewValidationError(field+".quantity", "must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return domainwf.NewValidationError(field+".unit_price", "must not be negative")
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return domainwf.NewValidationError(field+".discount_percent", "must be between 0 and 100")
		}
	}
	return nil
}

// newReferenceCode returns PR-YYYYMMDD-XXXXXXXX.
func newReferenceCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PR-%s-%s", now.Format("20060102"), suffix)
}

func (s *requisitionServiceImpl) Submit(ctx context.Context, id int64, actorEmail string) (*entity.Requisition, error) {
	req, err := s.engine.Submit(ctx, id, actorEmail)
	if err != nil {
		s.logger.Error("Failed to submit requisition", "error", err, "id", id)
		return nil, err
	}
	return req, nil
}

func (s *requisitionServiceImpl) ProcessStep(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error) {
	outcome, err := s.engine.ProcessStep(ctx, cmd)
	if err != nil {
		s.logger.Warn("Decision refused", "error", err, "id", cmd.RequisitionID, "approver", cmd.ApproverEmail)
		return nil, err
	}
	if outcome.DocumentError != "" {
		s.logger.Warn("Requisition approved without purchase order", "id", cmd.RequisitionID, "document_error", outcome.DocumentError)
	}
	return outcome, nil
}

func (s *requisitionServiceImpl) RequestModification(ctx context.Context, id int64, actorEmail, reason string) error {
	if strings.TrimSpace(actorEmail) == "" {
		return domainwf.NewValidationError("actor_email", "is required")
	}
	if err := s.engine.RequestModification(ctx, id, actorEmail, reason); err != nil {
		s.logger.Error("Failed to request modification", "error", err, "id", id)
		return err
	}
	s.logger.Info("Modification requested", "id", id, "actor", actorEmail)
	return nil
}

// Get returns the requisition with allocations, items, steps and audit records
func (s *requisitionServiceImpl) Get(ctx context.Context, id int64) (*entity.Requisition, error) {
	req, err := s.reqRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get requisition", "error", err, "id", id)
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrRequisitionNotFound, id)
	}
	return s.hydrate(ctx, req)
}

func (s *requisitionServiceImpl) GetByReference(ctx context.Context, referenceCode string) (*entity.Requisition, error) {
	req, err := s.reqRepo.GetByReference(ctx, referenceCode)
	if err != nil {
		s.logger.Error("Failed to get requisition by reference", "error", err, "reference", referenceCode)
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrRequisitionNotFound, referenceCode)
	}
	return s.hydrate(ctx, req)
}

func (s *requisitionServiceImpl) hydrate(ctx context.Context, req *entity.Requisition) (*entity.Requisition, error) {
	var err error
	if req.Allocations, err = s.allocRepo.GetByRequisitionID(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	if req.Items, err = s.itemRepo.GetByRequisitionID(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("get line items: %w", err)
	}
	if req.Steps, err = s.stepRepo.GetByRequisitionID(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	if req.Records, err = s.recordRepo.GetByRequisitionID(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("get approval records: %w", err)
	}
	return req, nil
}

// List retrieves a paginated list of requisitions, optionally by status
func (s *requisitionServiceImpl) List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	reqs, err := s.reqRepo.List(ctx, strings.ToUpper(strings.TrimSpace(status)), limit, offset)
	if err != nil {
		s.logger.Error("Failed to list requisitions", "error", err, "status", status)
		return nil, err
	}
	return reqs, nil
}

func (s *requisitionServiceImpl) Steps(ctx context.Context, id int64) ([]*entity.WorkflowStep, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return req.Steps, nil
}

// NextApprovers lists the pending steps at the current pointer; empty unless SUBMITTED.
func (s *requisitionServiceImpl) NextApprovers(ctx context.Context, id int64) ([]*entity.WorkflowStep, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := req.NextApprovers()
	if next == nil {
		next = []*entity.WorkflowStep{}
	}
	return next, nil
}

func (s *requisitionServiceImpl) AuditTrail(ctx context.Context, id int64) ([]*entity.ApprovalRecord, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return req.Records, nil
}

var _ RequisitionService = (*requisitionServiceImpl)(nil)
