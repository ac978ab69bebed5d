package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// DocumentRetryConfig holds configuration for the purchase order retry worker
type DocumentRetryConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultDocumentRetryConfig returns default configuration
func DefaultDocumentRetryConfig() DocumentRetryConfig {
	return DocumentRetryConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    20,
		MaxAttempts:  3,
	}
}

// DocumentRetrier re-runs purchase order generation for one requisition
type DocumentRetrier interface {
	Retry(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error)
}

// DocumentRetryWorker retries failed purchase orders of approved
// requisitions. Missing prerequisites need a human and are not retried.
type DocumentRetryWorker struct {
	config  DocumentRetryConfig
	reqRepo port.RequisitionRepository
	orders  DocumentRetrier
	logger  *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	attempts  map[int64]int
	succeeded int
	failed    int
}

// NewDocumentRetryWorker creates a new retry worker
func NewDocumentRetryWorker(
	config DocumentRetryConfig,
	reqRepo port.RequisitionRepository,
	orders DocumentRetrier,
	logger *zap.Logger,
) *DocumentRetryWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultDocumentRetryConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultDocumentRetryConfig().MaxAttempts
	}
	return &DocumentRetryWorker{
		config:   config,
		reqRepo:  reqRepo,
		orders:   orders,
		logger:   logger,
		attempts: make(map[int64]int),
	}
}

// Start begins the polling loop
func (w *DocumentRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("document retry worker already running")
	}
	if w.config.PollInterval <= 0 {
		return fmt.Errorf("document retry worker needs a positive poll interval")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("DocumentRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	w.wg.Add(1)
	go w.pollLoop(loopCtx)
	return nil
}

// Stop terminates the loop and waits for an in-progress pass
func (w *DocumentRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Info("DocumentRetryWorker stopped",
		zap.Int("succeeded", w.succeeded),
		zap.Int("failed", w.failed))
	return nil
}

// Name returns the worker name for identification
func (w *DocumentRetryWorker) Name() string {
	return "DocumentRetryWorker"
}

func (w *DocumentRetryWorker) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Purchase order retry pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce retries one batch and returns how many purchase orders it produced
func (w *DocumentRetryWorker) RunOnce(ctx context.Context) (int, error) {
	reqs, err := w.reqRepo.ListFailedDocuments(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list failed documents: %w", err)
	}

	produced := 0
	for _, req := range reqs {
		if ctx.Err() != nil {
			return produced, nil
		}
		if !w.claimAttempt(req.ID) {
			continue
		}

		po, err := w.orders.Retry(ctx, req.ID)
		if err != nil {
			w.recordFailure(req, err)
			continue
		}

		w.mu.Lock()
		delete(w.attempts, req.ID)
		w.succeeded++
		w.mu.Unlock()
		produced++

		w.logger.Info("Purchase order generated on retry",
			zap.String("requisition", req.ReferenceCode),
			zap.String("order_number", po.OrderNumber))
	}
	return produced, nil
}

// claimAttempt counts an attempt, refusing once the budget is spent
func (w *DocumentRetryWorker) claimAttempt(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts[id] >= w.config.MaxAttempts {
		return false
	}
	w.attempts[id]++
	return true
}

func (w *DocumentRetryWorker) recordFailure(req *entity.Requisition, err error) {
	w.mu.Lock()
	w.failed++
	if errors.Is(err, domainwf.ErrMissingPrerequisite) {
		w.attempts[req.ID] = w.config.MaxAttempts
	}
	attempt := w.attempts[req.ID]
	w.mu.Unlock()

	w.logger.Warn("Purchase order retry failed",
		zap.String("requisition", req.ReferenceCode),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", w.config.MaxAttempts),
		zap.Error(err))
}
