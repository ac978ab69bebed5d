package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/application/workflow"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeRequisitions struct {
	createFunc  func(ctx context.Context, in *service.DraftInput) (*entity.Requisition, error)
	processFunc func(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error)
	getFunc     func(ctx context.Context, id int64) (*entity.Requisition, error)
	lastStatus  string
}

func (f *fakeRequisitions) CreateDraft(ctx context.Context, in *service.DraftInput) (*entity.Requisition, error) {
	return f.createFunc(ctx, in)
}

func (f *fakeRequisitions) Submit(ctx context.Context, id int64, actorEmail string) (*entity.Requisition, error) {
	if id == 2 {
		return nil, fmt.Errorf("%w: DRAFT required", domainwf.ErrInvalidStateTransition)
	}
	return &entity.Requisition{ID: id, Status: entity.StatusSubmitted}, nil
}

func (f *fakeRequisitions) ProcessStep(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error) {
	return f.processFunc(ctx, cmd)
}

func (f *fakeRequisitions) RequestModification(ctx context.Context, id int64, actorEmail, reason string) error {
	return nil
}

func (f *fakeRequisitions) Get(ctx context.Context, id int64) (*entity.Requisition, error) {
	return f.getFunc(ctx, id)
}

func (f *fakeRequisitions) GetByReference(ctx context.Context, referenceCode string) (*entity.Requisition, error) {
	return &entity.Requisition{ID: 9, ReferenceCode: referenceCode}, nil
}

func (f *fakeRequisitions) List(ctx context.Context, status string, limit, offset int) ([]*entity.Requisition, error) {
	f.lastStatus = status
	return []*entity.Requisition{{ID: 1}, {ID: 2}}, nil
}

func (f *fakeRequisitions) Steps(ctx context.Context, id int64) ([]*entity.WorkflowStep, error) {
	return []*entity.WorkflowStep{{StepOrder: 1}}, nil
}

func (f *fakeRequisitions) NextApprovers(ctx context.Context, id int64) ([]*entity.WorkflowStep, error) {
	return []*entity.WorkflowStep{}, nil
}

func (f *fakeRequisitions) AuditTrail(ctx context.Context, id int64) ([]*entity.ApprovalRecord, error) {
	return []*entity.ApprovalRecord{{StepOrder: 1, Decision: entity.DecisionApproved}}, nil
}

type fakePurchaseOrders struct{}

func (fakePurchaseOrders) Generate(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	return nil, nil
}

func (fakePurchaseOrders) Retry(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	return nil, fmt.Errorf("%w: no line items", domainwf.ErrMissingPrerequisite)
}

func (fakePurchaseOrders) GetByRequisition(ctx context.Context, requisitionID int64) (*entity.PurchaseOrder, error) {
	return &entity.PurchaseOrder{RequisitionID: requisitionID, OrderNumber: "PO-1"}, nil
}

type fakeThresholds struct {
	stored map[string]decimal.Decimal
}

func (f *fakeThresholds) GetThreshold(ctx context.Context, name string) (decimal.Decimal, error) {
	if name == entity.ThresholdCEO {
		return decimal.Zero, domainwf.ConfigurationMissingError("threshold." + name)
	}
	return decimal.NewFromInt(10000), nil
}

func (f *fakeThresholds) GetExchangeRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if currency == "JPY" {
		return decimal.Zero, domainwf.ConfigurationMissingError("exchange_rate." + currency)
	}
	return decimal.RequireFromString("1.35"), nil
}

func (f *fakeThresholds) BaseCurrency() string { return "SGD" }

func (f *fakeThresholds) SetThreshold(ctx context.Context, name string, value decimal.Decimal) error {
	f.stored[name] = value
	return nil
}

func (f *fakeThresholds) SetExchangeRate(ctx context.Context, currency string, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return domainwf.NewValidationError("rate", "must be positive")
	}
	f.stored[currency] = rate
	return nil
}

func (f *fakeThresholds) ListOverrides(ctx context.Context) ([]*entity.SystemConfig, error) {
	return []*entity.SystemConfig{}, nil
}

func newTestServer(reqs *fakeRequisitions) (*Server, *fakeThresholds) {
	thresholds := &fakeThresholds{stored: map[string]decimal.Decimal{}}
	srv := NewServer(DefaultServerConfig(), reqs, fakePurchaseOrders{}, thresholds, nopLogger{},
		WithHealth(func() (bool, interface{}) { return true, map[string]string{"database": "ok"} }),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("procurement_decisions_total 0\n"))
		})),
	)
	return srv, thresholds
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"title":           "Monitors",
		"requester_email": "rita@corp.test",
		"currency":        "SGD",
		"total_amount":    "1000",
		"allocations": []map[string]interface{}{
			{"cost_center": "CC-OPS", "amount": 1000, "approver_email": "a@corp.test"},
		},
		"items": []map[string]interface{}{
			{"description": "Monitor", "quantity": 4, "unit_price": "250"},
		},
	}
}

func TestCreateRequisition(t *testing.T) {
	var got *service.DraftInput
	reqs := &fakeRequisitions{
		createFunc: func(ctx context.Context, in *service.DraftInput) (*entity.Requisition, error) {
			got = in
			return &entity.Requisition{ID: 1, Status: entity.StatusDraft}, nil
		},
	}
	srv, _ := newTestServer(reqs)

	rec, resp := do(t, srv, http.MethodPost, "/api/requisitions", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	require.NotNil(t, got)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(1000)))
	require.Len(t, got.Allocations, 1)
	assert.Equal(t, "a@corp.test", got.Allocations[0].ApproverEmail)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(250)))
}

func TestCreateRequisition_BindingErrors(t *testing.T) {
	reqs := &fakeRequisitions{
		createFunc: func(ctx context.Context, in *service.DraftInput) (*entity.Requisition, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	srv, _ := newTestServer(reqs)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
	}{
		{"missing title", func(b map[string]interface{}) { delete(b, "title") }, "title"},
		{"bad requester email", func(b map[string]interface{}) { b["requester_email"] = "nope" }, "requester_email"},
		{"no allocations", func(b map[string]interface{}) { b["allocations"] = []interface{}{} }, "allocations"},
		{"allocation without approver", func(b map[string]interface{}) {
			b["allocations"] = []map[string]interface{}{{"cost_center": "CC-OPS", "amount": 1000}}
		}, "allocations[0].approver_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validCreateBody()
			tt.mutate(body)
			rec, resp := do(t, srv, http.MethodPost, "/api/requisitions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestCreateRequisition_ServiceValidation(t *testing.T) {
	reqs := &fakeRequisitions{
		createFunc: func(ctx context.Context, in *service.DraftInput) (*entity.Requisition, error) {
			return nil, domainwf.NewValidationError("allocations", "sum does not match total")
		},
	}
	srv, _ := newTestServer(reqs)

	rec, resp := do(t, srv, http.MethodPost, "/api/requisitions", validCreateBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "allocations", resp.Field)
}

func TestRecordDecision_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not an approver", fmt.Errorf("%w: z@x", domainwf.ErrNoPendingApprovalForApprover), http.StatusForbidden},
		{"terminal", fmt.Errorf("%w: APPROVED", domainwf.ErrInvalidStateTransition), http.StatusConflict},
		{"concurrent", domainwf.ErrVersionConflict, http.StatusConflict},
		{"unknown", domainwf.ErrRequisitionNotFound, http.StatusNotFound},
		{"config", domainwf.ConfigurationMissingError("threshold.ceo"), http.StatusInternalServerError},
		{"storage", fmt.Errorf("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeRequisitions{
				processFunc: func(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error) {
					return nil, tt.err
				},
			})
			rec, resp := do(t, srv, http.MethodPost, "/api/requisitions/1/decisions", map[string]string{
				"approver_email": "z@corp.test",
				"decision":       "APPROVED",
			})
			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, resp.Success)
			if tt.name == "storage" {
				assert.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestRecordDecision(t *testing.T) {
	var got workflow.ProcessStepCommand
	srv, _ := newTestServer(&fakeRequisitions{
		processFunc: func(ctx context.Context, cmd workflow.ProcessStepCommand) (*workflow.StepOutcome, error) {
			got = cmd
			return &workflow.StepOutcome{
				Requisition: &entity.Requisition{ID: 3, Status: entity.StatusApproved},
				Completed:   true,
			}, nil
		},
	})

	rec, _ := do(t, srv, http.MethodPost, "/api/requisitions/3/decisions", map[string]string{
		"approver_email": "cfo@corp.test",
		"decision":       "APPROVED",
		"comments":       "ok",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(3), got.RequisitionID)
	assert.Equal(t, "cfo@corp.test", got.ApproverEmail)
	assert.Contains(t, rec.Body.String(), `"next_approvers":[]`)

	rec, resp := do(t, srv, http.MethodPost, "/api/requisitions/3/decisions", map[string]string{
		"approver_email": "cfo@corp.test",
		"decision":       "MAYBE",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "decision", resp.Field)
}

func TestRequisitionRoutes(t *testing.T) {
	reqs := &fakeRequisitions{
		getFunc: func(ctx context.Context, id int64) (*entity.Requisition, error) {
			if id != 1 {
				return nil, domainwf.ErrRequisitionNotFound
			}
			return &entity.Requisition{ID: 1}, nil
		},
	}
	srv, _ := newTestServer(reqs)

	tests := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{http.MethodGet, "/api/requisitions/1", nil, http.StatusOK},
		{http.MethodGet, "/api/requisitions/7", nil, http.StatusNotFound},
		{http.MethodGet, "/api/requisitions/abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/requisitions?status=submitted", nil, http.StatusOK},
		{http.MethodGet, "/api/requisitions?reference=PR-1", nil, http.StatusOK},
		{http.MethodPost, "/api/requisitions/1/submit", map[string]string{"actor_email": "rita@corp.test"}, http.StatusOK},
		{http.MethodPost, "/api/requisitions/2/submit", map[string]string{"actor_email": "rita@corp.test"}, http.StatusConflict},
		{http.MethodPost, "/api/requisitions/1/submit", map[string]string{}, http.StatusBadRequest},
		{http.MethodPost, "/api/requisitions/1/modification", map[string]string{"actor_email": "cs@corp.test", "reason": "split"}, http.StatusOK},
		{http.MethodGet, "/api/requisitions/1/steps", nil, http.StatusOK},
		{http.MethodGet, "/api/requisitions/1/next-approvers", nil, http.StatusOK},
		{http.MethodGet, "/api/requisitions/1/audit-trail", nil, http.StatusOK},
		{http.MethodGet, "/api/requisitions/1/purchase-order", nil, http.StatusOK},
		{http.MethodPost, "/api/requisitions/1/purchase-order/retry", nil, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec, _ := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "submitted", reqs.lastStatus)
}

func TestConfigRoutes(t *testing.T) {
	srv, thresholds := newTestServer(&fakeRequisitions{})

	rec, _ := do(t, srv, http.MethodGet, "/api/config/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fixed_asset_cfo":"10000"`)
	assert.Contains(t, rec.Body.String(), `"missing":["ceo"]`)

	rec, _ = do(t, srv, http.MethodPut, "/api/config/thresholds/ceo", map[string]string{"value": "43000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, thresholds.stored["ceo"].Equal(decimal.NewFromInt(43000)))

	rec, _ = do(t, srv, http.MethodGet, "/api/config/exchange-rates/usd", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currency":"USD"`)

	rec, _ = do(t, srv, http.MethodGet, "/api/config/exchange-rates/JPY", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "configuration missing")

	rec, resp := do(t, srv, http.MethodPut, "/api/config/exchange-rates/EUR", map[string]string{"value": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rate", resp.Field)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(&fakeRequisitions{})

	rec, resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "procurement_decisions_total")
}

func TestUnhealthy(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), &fakeRequisitions{}, fakePurchaseOrders{}, &fakeThresholds{}, nopLogger{},
		WithHealth(func() (bool, interface{}) { return false, nil }))

	rec, resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
}
