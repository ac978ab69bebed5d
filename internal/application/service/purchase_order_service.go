package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// Purchase order outcome labels for metrics
const (
	POResultGenerated = "generated"
	POResultExisting  = "existing"
	POResultFailed    = "failed"
)

// PurchaseOrderService creates the downstream purchase order for approved
// requisitions. Generate satisfies workflow.DocumentGenerator.
type PurchaseOrderService interface {
	Generate(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
	Retry(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
	GetByRequisition(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
}

type purchaseOrderServiceImpl struct {
	reqRepo    port.RequisitionRepository
	itemRepo   port.LineItemRepository
	poRepo     port.PurchaseOrderRepository
	txManager  port.TransactionManager
	sink       port.DocumentSink
	exporter   port.DocumentExporter
	dispatcher dispatcher.Dispatcher
	metrics    port.WorkflowMetrics
	logger     Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService. exporter,
// dispatcher and metrics may be nil.
func NewPurchaseOrderService(
	reqRepo port.RequisitionRepository,
	itemRepo port.LineItemRepository,
	poRepo port.PurchaseOrderRepository,
	txManager port.TransactionManager,
	sink port.DocumentSink,
	exporter port.DocumentExporter,
	d dispatcher.Dispatcher,
	metrics port.WorkflowMetrics,
	logger Logger,
) PurchaseOrderService {
	return &purchaseOrderServiceImpl{
		reqRepo:    reqRepo,
		itemRepo:   itemRepo,
		poRepo:     poRepo,
		txManager:  txManager,
		sink:       sink,
		exporter:   exporter,
		dispatcher: d,
		metrics:    metrics,
		logger:     logger,
	}
}

// Generate creates the purchase order at most once. A second call returns the
// existing order. Failures are recorded on the requisition and returned; the
// approval is never touched.
func (s *purchaseOrderServiceImpl) Generate(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	var (
		po      *entity.PurchaseOrder
		req     *entity.Requisition
		created bool
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.reqRepo.GetByID(txCtx, requisitionID)
		if err != nil {
			return fmt.Errorf("get requisition: %w", err)
		}
		if req == nil {
			return fmt.Errorf("%w: %d", domainwf.ErrRequisitionNotFound, requisitionID)
		}
		if req.Status != entity.StatusApproved {
			return fmt.Errorf("%w: purchase order needs an approved requisition, %s is %s",
				domainwf.ErrInvalidStateTransition, req.ReferenceCode, req.Status)
		}
		if req.NoDownstreamDocumentRequired {
			return fmt.Errorf("%w: requisition %s does not require a purchase order",
				domainwf.ErrInvalidStateTransition, req.ReferenceCode)
		}

		existing, err := s.poRepo.GetByRequisitionID(txCtx, requisitionID)
		if err != nil {
			return fmt.Errorf("get purchase order: %w", err)
		}
		if existing != nil {
			po = existing
			if req.DocumentStatus == entity.DocumentStatusGenerated && req.DocumentReference == existing.OrderNumber {
				return nil
			}
			// A late failure record can still point at an order that exists.
			generatedAt := existing.CreatedAt
			if err := s.reqRepo.UpdateDocumentState(txCtx, req.ID, entity.DocumentStatusGenerated, existing.OrderNumber, "", &generatedAt); err != nil {
				return fmt.Errorf("repair document state: %w", err)
			}
			s.logger.Warn("Repaired purchase order state",
				"requisition_id", requisitionID,
				"order_number", existing.OrderNumber,
				"previous_status", req.DocumentStatus,
			)
			return nil
		}

		items, err := s.itemRepo.GetByRequisitionID(txCtx, requisitionID)
		if err != nil {
			return fmt.Errorf("get line items: %w", err)
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: requisition %s has no line items", domainwf.ErrMissingPrerequisite, req.ReferenceCode)
		}
		if strings.TrimSpace(req.Currency) == "" {
			return fmt.Errorf("%w: requisition %s has no currency", domainwf.ErrMissingPrerequisite, req.ReferenceCode)
		}

		po, err = s.sink.CreatePurchaseOrder(txCtx, items, vendorDefaults(items), req)
		if err != nil {
			return fmt.Errorf("%w: %v", domainwf.ErrDocumentGeneration, err)
		}
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return fmt.Errorf("%w: store purchase order: %v", domainwf.ErrDocumentGeneration, err)
		}

		now := time.Now()
		if err := s.reqRepo.UpdateDocumentState(txCtx, req.ID, entity.DocumentStatusGenerated, po.OrderNumber, "", &now); err != nil {
			return fmt.Errorf("record purchase order: %w", err)
		}
		created = true
		return nil
	})

	if err != nil {
		if errors.Is(err, domainwf.ErrRequisitionNotFound) || errors.Is(err, domainwf.ErrInvalidStateTransition) {
			return nil, err
		}
		s.recordFailure(ctx, requisitionID, req, err)
		return nil, err
	}

	if !created {
		s.observe(POResultExisting)
		return po, nil
	}

	s.observe(POResultGenerated)
	s.logger.Info("Purchase order generated",
		"requisition_id", requisitionID,
		"order_number", po.OrderNumber,
		"lines", len(po.Lines),
	)
	s.export(ctx, po)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypePurchaseOrderCreated, req.ID, req.ReferenceCode, map[string]interface{}{
			event.PayloadOrderNumber: po.OrderNumber,
		}))
	}
	return po, nil
}

// recordFailure stores the error reference outside the failed transaction.
func (s *purchaseOrderServiceImpl) recordFailure(ctx context.Context, requisitionID int64, req *entity.Requisition, cause error) {
	s.observe(POResultFailed)
	s.logger.Error("Purchase order generation failed", "requisition_id", requisitionID, "error", cause)

	if err := s.reqRepo.UpdateDocumentState(ctx, requisitionID, entity.DocumentStatusFailed, "", cause.Error(), nil); err != nil {
		s.logger.Error("Failed to record purchase order failure", "requisition_id", requisitionID, "error", err)
	}

	if s.dispatcher != nil && req != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypePurchaseOrderFailed, req.ID, req.ReferenceCode, map[string]interface{}{
			event.PayloadError: cause.Error(),
		}))
	}
}

// export writes the workbook; failures only leave FilePath empty.
func (s *purchaseOrderServiceImpl) export(ctx context.Context, po *entity.PurchaseOrder) {
	if s.exporter == nil {
		return
	}

	path, err := s.exporter.Export(ctx, po)
	if err != nil {
		s.logger.Warn("Failed to export purchase order workbook", "order_number", po.OrderNumber, "error", err)
		return
	}
	if err := s.poRepo.UpdateFilePath(ctx, po.ID, path); err != nil {
		s.logger.Warn("Failed to store purchase order file path", "order_number", po.OrderNumber, "error", err)
		return
	}
	po.FilePath = path
}

// Retry regenerates after a recorded failure. It is safe to call at any time.
func (s *purchaseOrderServiceImpl) Retry(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	s.logger.Info("Retrying purchase order", "requisition_id", requisitionID)
	return s.Generate(ctx, requisitionID)
}

func (s *purchaseOrderServiceImpl) GetByRequisition(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.GetByRequisitionID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, fmt.Errorf("%w: no purchase order for requisition %d", domainwf.ErrMissingPrerequisite, requisitionID)
	}
	return po, nil
}

func (s *purchaseOrderServiceImpl) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObservePurchaseOrder(result)
	}
}

// vendorDefaults takes the vendor of the first line that names one.
func vendorDefaults(items []*entity.LineItem) entity.VendorDefaults {
	for _, item := range items {
		if strings.TrimSpace(item.VendorCode) != "" || strings.TrimSpace(item.VendorName) != "" {
			return entity.VendorDefaults{
				Code: strings.TrimSpace(item.VendorCode),
				Name: strings.TrimSpace(item.VendorName),
			}
		}
	}
	return entity.VendorDefaults{}
}

var _ PurchaseOrderService = (*purchaseOrderServiceImpl)(nil)
