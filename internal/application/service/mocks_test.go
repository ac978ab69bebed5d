package service

import (
	"context"
	"sync"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockRequisitionRepo struct {
	createFunc              func(ctx context.Context, req *entity.Requisition) error
	getByIDFunc             func(ctx context.Context, id int64) (*entity.Requisition, error)
	getByReferenceFunc      func(ctx context.Context, ref string) (*entity.Requisition, error)
	listFunc                func(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error)
	updateWorkflowStateFunc func(ctx context.Context, req *entity.Requisition) error

	documentUpdates []documentUpdate
}

type documentUpdate struct {
	id        int64
	status    string
	reference string
	errorRef  string
}

func (m *mockRequisitionRepo) Create(ctx context.Context, req *entity.Requisition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	req.ID = 1
	return nil
}

func (m *mockRequisitionRepo) GetByID(ctx context.Context, id int64) (*entity.Requisition, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRequisitionRepo) GetByReference(ctx context.Context, ref string) (*entity.Requisition, error) {
	if m.getByReferenceFunc != nil {
		return m.getByReferenceFunc(ctx, ref)
	}
	return nil, nil
}

func (m *mockRequisitionRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, status, limit, offset)
	}
	return []*entity.Requisition{}, nil
}

func (m *mockRequisitionRepo) UpdateWorkflowState(ctx context.Context, req *entity.Requisition) error {
	if m.updateWorkflowStateFunc != nil {
		return m.updateWorkflowStateFunc(ctx, req)
	}
	return nil
}

func (m *mockRequisitionRepo) ListFailedDocuments(ctx context.Context, limit int) ([]*entity.Requisition, error) {
	return nil, nil
}

func (m *mockRequisitionRepo) UpdateDocumentState(ctx context.Context, id int64, status, reference, errorRef string, at *time.Time) error {
	m.documentUpdates = append(m.documentUpdates, documentUpdate{id: id, status: status, reference: reference, errorRef: errorRef})
	return nil
}

type mockAllocationRepo struct {
	created []*entity.CostCenterAllocation
}

func (m *mockAllocationRepo) CreateBatch(ctx context.Context, reqID int64, allocations []*entity.CostCenterAllocation) error {
	m.created = append(m.created, allocations...)
	return nil
}

func (m *mockAllocationRepo) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.CostCenterAllocation, error) {
	return m.created, nil
}

type mockItemRepo struct {
	items []*entity.LineItem
}

func (m *mockItemRepo) CreateBatch(ctx context.Context, reqID int64, items []*entity.LineItem) error {
	m.items = append(m.items, items...)
	return nil
}

func (m *mockItemRepo) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.LineItem, error) {
	return m.items, nil
}

type mockStepRepo struct {
	steps []*entity.WorkflowStep
}

func (m *mockStepRepo) CreateBatch(ctx context.Context, reqID int64, steps []*entity.WorkflowStep) error {
	m.steps = append(m.steps, steps...)
	return nil
}

func (m *mockStepRepo) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.WorkflowStep, error) {
	return m.steps, nil
}

func (m *mockStepRepo) UpdateDecision(ctx context.Context, step *entity.WorkflowStep) error {
	return nil
}

func (m *mockStepRepo) SkipPending(ctx context.Context, reqID int64, at time.Time) (int64, error) {
	return 0, nil
}

type mockRecordRepo struct {
	records []*entity.ApprovalRecord
}

func (m *mockRecordRepo) Append(ctx context.Context, record *entity.ApprovalRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *mockRecordRepo) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.ApprovalRecord, error) {
	return m.records, nil
}

type mockPurchaseOrderRepo struct {
	orders    map[int64]*entity.PurchaseOrder
	createErr error
	paths     map[int64]string
}

func newMockPurchaseOrderRepo() *mockPurchaseOrderRepo {
	return &mockPurchaseOrderRepo{orders: map[int64]*entity.PurchaseOrder{}, paths: map[int64]string{}}
}

func (m *mockPurchaseOrderRepo) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	if m.createErr != nil {
		return m.createErr
	}
	po.ID = int64(len(m.orders) + 1)
	m.orders[po.RequisitionID] = po
	return nil
}

func (m *mockPurchaseOrderRepo) GetByRequisitionID(ctx context.Context, reqID int64) (*entity.PurchaseOrder, error) {
	return m.orders[reqID], nil
}

func (m *mockPurchaseOrderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*entity.PurchaseOrder, error) {
	for _, po := range m.orders {
		if po.OrderNumber == orderNumber {
			return po, nil
		}
	}
	return nil, nil
}

func (m *mockPurchaseOrderRepo) UpdateFilePath(ctx context.Context, id int64, path string) error {
	m.paths[id] = path
	return nil
}

type mockConfigRepo struct {
	values map[string]*entity.SystemConfig
	getErr error
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{values: map[string]*entity.SystemConfig{}}
}

func (m *mockConfigRepo) Get(ctx context.Context, key string) (*entity.SystemConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.values[key], nil
}

func (m *mockConfigRepo) Upsert(ctx context.Context, cfg *entity.SystemConfig) error {
	m.values[cfg.Key] = cfg
	return nil
}

func (m *mockConfigRepo) ListByPrefix(ctx context.Context, prefix string) ([]*entity.SystemConfig, error) {
	var out []*entity.SystemConfig
	for k, v := range m.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockSender struct {
	mu      sync.Mutex
	sent    map[string][]string
	failFor map[string]error
}

func newMockSender() *mockSender {
	return &mockSender{sent: map[string][]string{}, failFor: map[string]error{}}
}

func (m *mockSender) SendText(ctx context.Context, email, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[email]; err != nil {
		return "", err
	}
	m.sent[email] = append(m.sent[email], content)
	return "msg-" + email, nil
}

type mockDispatcher struct {
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}
func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}
func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}
func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.events = append(m.events, evt)
	return nil
}
func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.events = append(m.events, evt)
}
func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }
func (m *mockDispatcher) Stats() dispatcher.Stats                                 { return dispatcher.Stats{} }
func (m *mockDispatcher) Close() error                                            { return nil }

type mockMetrics struct {
	purchaseOrders map[string]int
}

func (m *mockMetrics) ObserveDecision(decision string)  {}
func (m *mockMetrics) ObserveAdvance()                  {}
func (m *mockMetrics) ObserveCompletion(status string)  {}
func (m *mockMetrics) ObservePurchaseOrder(result string) {
	if m.purchaseOrders == nil {
		m.purchaseOrders = map[string]int{}
	}
	m.purchaseOrders[result]++
}
