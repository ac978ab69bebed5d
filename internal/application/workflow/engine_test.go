package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

// memStore keeps copies of everything it is given so that callers never share
// pointers with the stored state, the same way a database would behave.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	reqs    map[int64]*entity.Requisition
	allocs  map[int64][]*entity.CostCenterAllocation
	items   map[int64][]*entity.LineItem
	steps   map[int64][]*entity.WorkflowStep
	records []*entity.ApprovalRecord
}

func newMemStore() *memStore {
	return &memStore{
		reqs:   make(map[int64]*entity.Requisition),
		allocs: make(map[int64][]*entity.CostCenterAllocation),
		items:  make(map[int64][]*entity.LineItem),
		steps:  make(map[int64][]*entity.WorkflowStep),
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Requisitions: memRequisitions{m},
		Allocations:  memAllocations{m},
		Items:        memItems{m},
		Steps:        memSteps{m},
		Records:      memRecords{m},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func headerCopy(r *entity.Requisition) *entity.Requisition {
	cp := *r
	cp.Allocations, cp.Items, cp.Steps, cp.Records = nil, nil, nil, nil
	return &cp
}

type memRequisitions struct{ *memStore }

func (m memRequisitions) Create(ctx context.Context, req *entity.Requisition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = m.id()
	m.reqs[req.ID] = headerCopy(req)
	return nil
}

func (m memRequisitions) GetByID(ctx context.Context, id int64) (*entity.Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, nil
	}
	return headerCopy(r), nil
}

func (m memRequisitions) GetByReference(ctx context.Context, ref string) (*entity.Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.ReferenceCode == ref {
			return headerCopy(r), nil
		}
	}
	return nil, nil
}

func (m memRequisitions) List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error) {
	return nil, nil
}

func (m memRequisitions) UpdateWorkflowState(ctx context.Context, req *entity.Requisition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reqs[req.ID]
	if !ok || stored.Version != req.Version {
		return domainwf.ErrVersionConflict
	}
	req.Version++
	cp := headerCopy(req)
	cp.DocumentStatus = stored.DocumentStatus
	cp.DocumentReference = stored.DocumentReference
	cp.DocumentGeneratedAt = stored.DocumentGeneratedAt
	cp.DocumentError = stored.DocumentError
	m.reqs[req.ID] = cp
	return nil
}

func (m memRequisitions) ListFailedDocuments(ctx context.Context, limit int) ([]*entity.Requisition, error) {
	return nil, nil
}

func (m memRequisitions) UpdateDocumentState(ctx context.Context, id int64, status, reference, errorRef string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reqs[id]
	if status == entity.DocumentStatusFailed && r.DocumentStatus == entity.DocumentStatusGenerated {
		return nil
	}
	r.DocumentStatus, r.DocumentReference, r.DocumentError, r.DocumentGeneratedAt = status, reference, errorRef, at
	return nil
}

type memAllocations struct{ *memStore }

func (m memAllocations) CreateBatch(ctx context.Context, reqID int64, allocations []*entity.CostCenterAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range allocations {
		cp := *a
		cp.RequisitionID = reqID
		m.allocs[reqID] = append(m.allocs[reqID], &cp)
	}
	return nil
}

func (m memAllocations) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.CostCenterAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.CostCenterAllocation
	for _, a := range m.allocs[reqID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

type memItems struct{ *memStore }

func (m memItems) CreateBatch(ctx context.Context, reqID int64, items []*entity.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		cp := *it
		m.items[reqID] = append(m.items[reqID], &cp)
	}
	return nil
}

func (m memItems) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.LineItem
	for _, it := range m.items[reqID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

type memSteps struct{ *memStore }

func (m memSteps) CreateBatch(ctx context.Context, reqID int64, steps []*entity.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range steps {
		s.ID = m.id()
		s.RequisitionID = reqID
		cp := *s
		m.steps[reqID] = append(m.steps[reqID], &cp)
	}
	return nil
}

func (m memSteps) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowStep
	for _, s := range m.steps[reqID] {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m memSteps) UpdateDecision(ctx context.Context, step *entity.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.steps[step.RequisitionID] {
		if s.ID == step.ID {
			cp := *step
			m.steps[step.RequisitionID][i] = &cp
			return nil
		}
	}
	return errors.New("step not found")
}

func (m memSteps) SkipPending(ctx context.Context, reqID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.steps[reqID] {
		if s.Status == entity.StepStatusPending {
			s.Status = entity.StepStatusSkipped
			n++
		}
	}
	return n, nil
}

type memRecords struct{ *memStore }

func (m memRecords) Append(ctx context.Context, record *entity.ApprovalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = m.id()
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

func (m memRecords) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.ApprovalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalRecord
	for _, r := range m.records {
		if r.RequisitionID == reqID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return m.commitErr
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Stats() dispatcher.Stats { return dispatcher.Stats{} }

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type mockDocuments struct {
	store *memStore
	err   error
	calls int
}

func (m *mockDocuments) Generate(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	m.calls++
	repo := memRequisitions{m.store}
	if m.err != nil {
		_ = repo.UpdateDocumentState(ctx, requisitionID, entity.DocumentStatusFailed, "", m.err.Error(), nil)
		return nil, m.err
	}
	now := time.Now()
	_ = repo.UpdateDocumentState(ctx, requisitionID, entity.DocumentStatusGenerated, "PO-1", "", &now)
	return &entity.PurchaseOrder{OrderNumber: "PO-1", RequisitionID: requisitionID}, nil
}

type mockMetrics struct {
	mu          sync.Mutex
	decisions   map[string]int
	advances    int
	completions map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{decisions: map[string]int{}, completions: map[string]int{}}
}

func (m *mockMetrics) ObserveDecision(decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[decision]++
}

func (m *mockMetrics) ObserveAdvance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advances++
}

func (m *mockMetrics) ObserveCompletion(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[status]++
}

func (m *mockMetrics) ObservePurchaseOrder(result string) {}

// Fixture

type fixture struct {
	store      *memStore
	dispatcher *mockDispatcher
	documents  *mockDocuments
	metrics    *mockMetrics
	engine     WorkflowEngine
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      newMemStore(),
		dispatcher: &mockDispatcher{},
		metrics:    newMockMetrics(),
		now:        time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}
	f.documents = &mockDocuments{store: f.store}
	f.engine = NewEngine(
		f.store.repos(),
		&mockTxManager{},
		NewStepGenerator(newStubResolver(), newStubRoles()),
		WithDispatcher(f.dispatcher),
		WithDocumentGenerator(f.documents),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

// draft stores a requisition with its allocations and returns its id.
func (f *fixture) draft(t *testing.T, req *entity.Requisition) int64 {
	t.Helper()
	ctx := context.Background()
	repos := f.store.repos()
	require.NoError(t, repos.Requisitions.Create(ctx, req))
	require.NoError(t, repos.Allocations.CreateBatch(ctx, req.ID, req.Allocations))
	return req.ID
}

func (f *fixture) submitted(t *testing.T, req *entity.Requisition) int64 {
	t.Helper()
	id := f.draft(t, req)
	_, err := f.engine.Submit(context.Background(), id, "requester@x")
	require.NoError(t, err)
	return id
}

func (f *fixture) decide(id int64, email, decision string) (*StepOutcome, error) {
	return f.engine.ProcessStep(context.Background(), ProcessStepCommand{
		RequisitionID: id,
		ApproverEmail: email,
		Decision:      decision,
		Comments:      "ok",
	})
}

func (f *fixture) stored(t *testing.T, id int64) *entity.Requisition {
	t.Helper()
	repos := f.store.repos()
	req, err := repos.Requisitions.GetByID(context.Background(), id)
	require.NoError(t, err)
	req.Steps, err = repos.Steps.GetByRequisitionID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func twoCostCenters() *entity.Requisition {
	return requisition("SGD", "1000",
		alloc("CC-OPS", "600", "Alice", "a@x"),
		alloc("CC-FIN", "400", "Bob", "b@x"))
}

// Tests

func TestBuildRequisitionStateMachine(t *testing.T) {
	tests := []struct {
		name         string
		initialState domainwf.State
		trigger      domainwf.Trigger
		wantState    domainwf.State
		wantError    bool
	}{
		{"DRAFT -> SUBMITTED on SUBMIT", domainwf.StateDraft, domainwf.TriggerSubmit, domainwf.StateSubmitted, false},
		{"SUBMITTED stays on ADVANCE", domainwf.StateSubmitted, domainwf.TriggerAdvance, domainwf.StateSubmitted, false},
		{"SUBMITTED -> APPROVED on COMPLETE", domainwf.StateSubmitted, domainwf.TriggerComplete, domainwf.StateApproved, false},
		{"SUBMITTED -> REJECTED on REJECT", domainwf.StateSubmitted, domainwf.TriggerReject, domainwf.StateRejected, false},
		{"SUBMITTED -> REQUIRES_MODIFICATION", domainwf.StateSubmitted, domainwf.TriggerRequestModification, domainwf.StateRequiresModification, false},
		{"DRAFT cannot COMPLETE", domainwf.StateDraft, domainwf.TriggerComplete, domainwf.StateDraft, true},
		{"SUBMITTED cannot SUBMIT again", domainwf.StateSubmitted, domainwf.TriggerSubmit, domainwf.StateSubmitted, true},
		{"APPROVED is terminal", domainwf.StateApproved, domainwf.TriggerReject, domainwf.StateApproved, true},
		{"REJECTED is terminal", domainwf.StateRejected, domainwf.TriggerAdvance, domainwf.StateRejected, true},
		{"REQUIRES_MODIFICATION cannot ADVANCE", domainwf.StateRequiresModification, domainwf.TriggerAdvance, domainwf.StateRequiresModification, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildRequisitionStateMachine(tt.initialState)
			err := machine.Fire(context.Background(), tt.trigger)
			if tt.wantError {
				assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, machine.State())
		})
	}
}

func TestEngine_Submit(t *testing.T) {
	f := newFixture(t)
	id := f.draft(t, requisition("USD", "1000", alloc("CC-OPS", "1000", "Alice", "a@x")))

	req, err := f.engine.Submit(context.Background(), id, "requester@x")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusSubmitted, req.Status)
	assert.Equal(t, 1, req.CurrentStepOrder)
	assert.Equal(t, 3, req.TotalSteps)
	assert.Equal(t, "1350", req.BaseAmount.Decimal.String())
	assert.Equal(t, "1.35", req.ExchangeRate.Decimal.String())
	require.NotNil(t, req.SubmittedAt)

	stored := f.stored(t, id)
	assert.Equal(t, entity.StatusSubmitted, stored.Status)
	assert.Len(t, stored.Steps, 3)
	assert.Equal(t, int64(1), stored.Version)

	next := f.dispatcher.ofType(event.TypeNextApproversActive)
	require.Len(t, next, 1)
	assert.Equal(t, []string{"a@x"}, next[0].GetPayloadStrings(event.PayloadApproverEmails))
	assert.Len(t, f.dispatcher.ofType(event.TypeRequisitionSubmitted), 1)
}

func TestEngine_SubmitErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Submit(context.Background(), 42, "requester@x")
		assert.ErrorIs(t, err, domainwf.ErrRequisitionNotFound)
	})

	t.Run("already submitted", func(t *testing.T) {
		f := newFixture(t)
		id := f.submitted(t, twoCostCenters())
		_, err := f.engine.Submit(context.Background(), id, "requester@x")
		assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)
	})

	t.Run("missing exchange rate", func(t *testing.T) {
		f := newFixture(t)
		id := f.draft(t, requisition("JPY", "1000", alloc("CC-OPS", "1000", "Alice", "a@x")))
		_, err := f.engine.Submit(context.Background(), id, "requester@x")
		assert.ErrorIs(t, err, domainwf.ErrConfigurationMissing)

		stored := f.stored(t, id)
		assert.Equal(t, entity.StatusDraft, stored.Status)
		assert.Empty(t, stored.Steps)
	})
}

func TestEngine_EndToEnd(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	// Group 1 is parallel: the first approval does not advance.
	out, err := f.decide(id, "A@X", entity.DecisionApproved)
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.Equal(t, 1, out.Requisition.CurrentStepOrder)

	_, err = f.decide(id, "a@x", entity.DecisionApproved)
	assert.ErrorIs(t, err, domainwf.ErrNoPendingApprovalForApprover)

	out, err = f.decide(id, "b@x", entity.DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	assert.Equal(t, 2, out.Requisition.CurrentStepOrder)
	require.Len(t, out.NextApprovers, 1)
	assert.Equal(t, "cs.head@corp.test", out.NextApprovers[0].ApproverEmail)

	out, err = f.decide(id, "cs.head@corp.test", entity.DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	assert.Equal(t, 3, out.Requisition.CurrentStepOrder)

	out, err = f.decide(id, "cfo@corp.test", entity.DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, entity.StatusApproved, out.Requisition.Status)
	assert.Equal(t, "Fiona CFO", out.Requisition.FinalApprover)
	require.NotNil(t, out.Requisition.FinalApprovalDate)
	assert.Equal(t, f.now, *out.Requisition.FinalApprovalDate)
	require.NotNil(t, out.PurchaseOrder)
	assert.Equal(t, "PO-1", out.PurchaseOrder.OrderNumber)
	assert.Equal(t, entity.DocumentStatusGenerated, out.Requisition.DocumentStatus)

	stored := f.stored(t, id)
	assert.Equal(t, entity.StatusApproved, stored.Status)
	assert.Equal(t, 3, stored.CurrentStepOrder)
	for _, s := range stored.Steps {
		assert.Equal(t, entity.StepStatusApproved, s.Status)
	}

	records, err := f.store.repos().Records.GetByRequisitionID(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	_, err = f.decide(id, "cfo@corp.test", entity.DecisionApproved)
	assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)

	assert.Len(t, f.dispatcher.ofType(event.TypeNextApproversActive), 3)
	assert.Len(t, f.dispatcher.ofType(event.TypeRequisitionApproved), 1)
	assert.Equal(t, 1, f.documents.calls)
	assert.Equal(t, 4, f.metrics.decisions[entity.DecisionApproved])
	assert.Equal(t, 2, f.metrics.advances)
	assert.Equal(t, 1, f.metrics.completions[entity.StatusApproved])
}

func TestEngine_Reject(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	out, err := f.decide(id, "b@x", entity.DecisionRejected)
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, entity.StatusRejected, out.Requisition.Status)
	assert.Equal(t, "Bob", out.Requisition.RejectedBy)
	assert.Equal(t, "ok", out.Requisition.RejectionReason)

	stored := f.stored(t, id)
	assert.Equal(t, entity.StatusRejected, stored.Status)
	for _, s := range stored.Steps {
		if s.ApproverEmail == "b@x" {
			assert.Equal(t, entity.StepStatusRejected, s.Status)
		} else {
			assert.Equal(t, entity.StepStatusSkipped, s.Status, "step %d %s", s.StepOrder, s.ApproverEmail)
		}
	}

	_, err = f.decide(id, "a@x", entity.DecisionApproved)
	assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)
	assert.Len(t, f.dispatcher.ofType(event.TypeRequisitionRejected), 1)
	assert.Zero(t, f.documents.calls)
}

func TestEngine_RejectFromLaterStep(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	_, err := f.decide(id, "cfo@corp.test", entity.DecisionApproved)
	assert.ErrorIs(t, err, domainwf.ErrNoPendingApprovalForApprover)

	out, err := f.decide(id, "cfo@corp.test", entity.DecisionRejected)
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, 3, out.Step.StepOrder)
}

func TestEngine_ProcessStepErrors(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	tests := []struct {
		name    string
		cmd     ProcessStepCommand
		wantErr error
	}{
		{"unknown decision", ProcessStepCommand{RequisitionID: id, ApproverEmail: "a@x", Decision: "MAYBE"}, domainwf.ErrValidation},
		{"missing email", ProcessStepCommand{RequisitionID: id, Decision: entity.DecisionApproved}, domainwf.ErrValidation},
		{"unknown requisition", ProcessStepCommand{RequisitionID: 999, ApproverEmail: "a@x", Decision: entity.DecisionApproved}, domainwf.ErrRequisitionNotFound},
		{"stranger", ProcessStepCommand{RequisitionID: id, ApproverEmail: "z@x", Decision: entity.DecisionApproved}, domainwf.ErrNoPendingApprovalForApprover},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ProcessStep(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("draft", func(t *testing.T) {
		draftID := f.draft(t, twoCostCenters())
		_, err := f.decide(draftID, "a@x", entity.DecisionApproved)
		assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)
	})
}

func TestEngine_ParallelFinalGroup(t *testing.T) {
	f := newFixture(t)
	req := requisition("SGD", "5000",
		alloc("CC-OPS", "3000", "Zed", "z@x"),
		alloc("CC-FIN", "2000", "Amy", "amy@x"))
	req.IsFixedAsset = true
	id := f.submitted(t, req)

	for _, email := range []string{"z@x", "amy@x", "cs.head@corp.test", "z@x"} {
		out, err := f.decide(id, email, entity.DecisionApproved)
		require.NoError(t, err)
		assert.False(t, out.Completed)
	}

	out, err := f.decide(id, "amy@x", entity.DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, "Amy, Zed", out.Requisition.FinalApprover)
}

func TestEngine_NoDownstreamDocument(t *testing.T) {
	f := newFixture(t)
	req := requisition("SGD", "100", alloc("CC-OPS", "100", "Alice", "a@x"))
	req.HasPreSignedApproval = true
	req.NoDownstreamDocumentRequired = true
	id := f.submitted(t, req)

	_, err := f.decide(id, "a@x", entity.DecisionApproved)
	require.NoError(t, err)
	out, err := f.decide(id, "cs.head@corp.test", entity.DecisionApproved)
	require.NoError(t, err)

	assert.True(t, out.Completed)
	assert.Nil(t, out.PurchaseOrder)
	assert.Zero(t, f.documents.calls)
	assert.Equal(t, entity.DocumentStatusNotRequired, f.stored(t, id).DocumentStatus)
}

func TestEngine_DocumentFailureKeepsApproval(t *testing.T) {
	f := newFixture(t)
	f.documents.err = errors.New("missing prerequisite: no line items")
	req := requisition("SGD", "100", alloc("CC-OPS", "100", "Alice", "a@x"))
	req.HasPreSignedApproval = true
	id := f.submitted(t, req)

	_, err := f.decide(id, "a@x", entity.DecisionApproved)
	require.NoError(t, err)
	out, err := f.decide(id, "cs.head@corp.test", entity.DecisionApproved)
	require.NoError(t, err)

	assert.True(t, out.Completed)
	assert.Contains(t, out.DocumentError, "no line items")

	stored := f.stored(t, id)
	assert.Equal(t, entity.StatusApproved, stored.Status)
	assert.Equal(t, entity.DocumentStatusFailed, stored.DocumentStatus)
}

func TestEngine_RequestModification(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	require.NoError(t, f.engine.RequestModification(context.Background(), id, "cs.head@corp.test", "split by quarter"))

	state, err := f.engine.GetCurrentState(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRequiresModification, state)

	for _, s := range f.stored(t, id).Steps {
		assert.Equal(t, entity.StepStatusSkipped, s.Status)
	}

	err = f.engine.RequestModification(context.Background(), id, "cs.head@corp.test", "again")
	assert.ErrorIs(t, err, domainwf.ErrInvalidStateTransition)
}

func TestEngine_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.submitted(t, twoCostCenters())

	repos := f.store.repos()
	repos.Steps = bumpingSteps{memSteps: memSteps{f.store}}
	engine := NewEngine(repos, &mockTxManager{}, NewStepGenerator(newStubResolver(), newStubRoles()))

	_, err := engine.ProcessStep(context.Background(), ProcessStepCommand{
		RequisitionID: id, ApproverEmail: "a@x", Decision: entity.DecisionApproved,
	})
	assert.ErrorIs(t, err, domainwf.ErrVersionConflict)
}

// bumpingSteps simulates another writer committing between our read and our write.
type bumpingSteps struct {
	memSteps
}

func (b bumpingSteps) GetByRequisitionID(ctx context.Context, reqID int64) ([]*entity.WorkflowStep, error) {
	b.mu.Lock()
	b.reqs[reqID].Version++
	b.mu.Unlock()
	return b.memSteps.GetByRequisitionID(ctx, reqID)
}

func TestEngine_ConcurrentApprovalsAdvanceOnce(t *testing.T) {
	for round := 0; round < 25; round++ {
		f := newFixture(t)
		id := f.submitted(t, twoCostCenters())

		var wg sync.WaitGroup
		outcomes := make([]*StepOutcome, 2)
		errs := make([]error, 2)
		for i, email := range []string{"a@x", "b@x"} {
			wg.Add(1)
			go func(i int, email string) {
				defer wg.Done()
				outcomes[i], errs[i] = f.decide(id, email, entity.DecisionApproved)
			}(i, email)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		advanced := 0
		for _, o := range outcomes {
			if o.Advanced {
				advanced++
			}
		}
		assert.Equal(t, 1, advanced, "round %d", round)

		stored := f.stored(t, id)
		assert.Equal(t, 2, stored.CurrentStepOrder)
		assert.Equal(t, int64(3), stored.Version)

		group2 := 0
		for _, evt := range f.dispatcher.ofType(event.TypeNextApproversActive) {
			if evt.GetPayloadInt(event.PayloadStepOrder) == 2 {
				group2++
			}
		}
		assert.Equal(t, 1, group2, "round %d", round)
	}
}

func TestFinalApprover(t *testing.T) {
	steps := []*entity.WorkflowStep{
		{StepOrder: 1, ApproverName: "Carl", Status: entity.StepStatusApproved},
		{StepOrder: 2, ApproverName: "Zed", Status: entity.StepStatusApproved},
		{StepOrder: 2, ApproverName: "Amy", Status: entity.StepStatusApproved},
		{StepOrder: 3, ApproverName: "Pending Pat", Status: entity.StepStatusPending},
	}
	assert.Equal(t, "Amy, Zed", FinalApprover(steps))
	assert.Equal(t, "", FinalApprover(nil))
}
