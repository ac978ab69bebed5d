package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Repositories groups the stores the engine reads and writes
type Repositories struct {
	Requisitions port.RequisitionRepository
	Allocations  port.AllocationRepository
	Items        port.LineItemRepository
	Steps        port.StepRepository
	Records      port.ApprovalRecordRepository
}

type engineImpl struct {
	repos     Repositories
	txManager port.TransactionManager
	generator StepGenerator

	dispatcher dispatcher.Dispatcher
	documents  DocumentGenerator
	metrics    port.WorkflowMetrics
	logger     Logger
	now        func() time.Time

	locks *keyedLocker
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithDocumentGenerator sets the purchase order generator run on completion
func WithDocumentGenerator(g DocumentGenerator) EngineOption {
	return func(e *engineImpl) {
		e.documents = g
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.WorkflowMetrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	repos Repositories,
	txManager port.TransactionManager,
	generator StepGenerator,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		repos:     repos,
		txManager: txManager,
		generator: generator,
		now:       time.Now,
		locks:     newKeyedLocker(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Submit(ctx context.Context, requisitionID int64, actorEmail string) (*entity.Requisition, error) {
	unlock := e.locks.Lock(requisitionID)
	defer unlock()

	var req *entity.Requisition
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = e.load(txCtx, requisitionID, true)
		if err != nil {
			return err
		}

		machine := BuildRequisitionStateMachine(domainwf.State(req.Status))
		if err := machine.Fire(txCtx, domainwf.TriggerSubmit); err != nil {
			return fmt.Errorf("cannot submit requisition %s: %w", req.ReferenceCode, err)
		}

		plan, err := e.generator.Plan(txCtx, req)
		if err != nil {
			return err
		}

		if err := e.repos.Steps.CreateBatch(txCtx, req.ID, plan.Steps); err != nil {
			return fmt.Errorf("failed to persist workflow steps: %w", err)
		}

		now := e.now()
		req.Steps = plan.Steps
		req.Status = machine.State().String()
		req.CurrentStepOrder = 1
		req.TotalSteps = plan.TotalSteps
		req.ExchangeRate = plan.ExchangeRate
		req.BaseAmount = plan.BaseAmount
		req.SubmittedAt = &now

		return e.repos.Requisitions.UpdateWorkflowState(txCtx, req)
	})
	if err != nil {
		return nil, err
	}

	e.info("Requisition submitted",
		"requisition_id", req.ID,
		"reference", req.ReferenceCode,
		"actor", actorEmail,
		"total_steps", req.TotalSteps,
	)

	e.emit(ctx, event.NewEvent(event.TypeRequisitionSubmitted, req.ID, req.ReferenceCode, map[string]interface{}{
		event.PayloadActor: actorEmail,
	}))
	e.emitNextApprovers(ctx, req, req.NextApprovers())

	return req, nil
}

func (e *engineImpl) ProcessStep(ctx context.Context, cmd ProcessStepCommand) (*StepOutcome, error) {
	decision := strings.ToUpper(strings.TrimSpace(cmd.Decision))
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return nil, domainwf.NewValidationError("decision", fmt.Sprintf("must be %s or %s", entity.DecisionApproved, entity.DecisionRejected))
	}
	if strings.TrimSpace(cmd.ApproverEmail) == "" {
		return nil, domainwf.NewValidationError("approver_email", "is required")
	}

	// Group completion and pointer advancement must not interleave for one requisition.
	unlock := e.locks.Lock(cmd.RequisitionID)
	defer unlock()

	outcome := &StepOutcome{}
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.load(txCtx, cmd.RequisitionID, false)
		if err != nil {
			return err
		}
		outcome.Requisition = req

		machine := BuildRequisitionStateMachine(domainwf.State(req.Status))
		if machine.State() != domainwf.StateSubmitted {
			return fmt.Errorf("%w: requisition %s is %s", domainwf.ErrInvalidStateTransition, req.ReferenceCode, req.Status)
		}

		step := findPendingStep(req, cmd.ApproverEmail, decision)
		if step == nil {
			return fmt.Errorf("%w: %s on requisition %s", domainwf.ErrNoPendingApprovalForApprover, cmd.ApproverEmail, req.ReferenceCode)
		}
		outcome.Step = step

		now := e.now()
		step.ActionDate = &now
		step.Comments = cmd.Comments
		if decision == entity.DecisionApproved {
			step.Status = entity.StepStatusApproved
		} else {
			step.Status = entity.StepStatusRejected
		}

		if err := e.repos.Steps.UpdateDecision(txCtx, step); err != nil {
			return fmt.Errorf("failed to update step: %w", err)
		}
		if err := e.repos.Records.Append(txCtx, &entity.ApprovalRecord{
			RequisitionID: req.ID,
			StepOrder:     step.StepOrder,
			ApproverName:  step.ApproverName,
			ApproverEmail: step.ApproverEmail,
			ApproverRole:  step.ApproverRole,
			Decision:      decision,
			Comments:      cmd.Comments,
			CreatedAt:     now,
		}); err != nil {
			return fmt.Errorf("failed to append approval record: %w", err)
		}

		if decision == entity.DecisionRejected {
			if err := e.reject(txCtx, machine, req, step, now); err != nil {
				return err
			}
			outcome.Rejected = true
		} else if groupApproved(req, step.StepOrder) {
			if err := e.advance(txCtx, machine, req, step.StepOrder, now, outcome); err != nil {
				return err
			}
		}

		// Every decision bumps the version so a concurrent writer fails its check.
		return e.repos.Requisitions.UpdateWorkflowState(txCtx, req)
	})
	if err != nil {
		return nil, err
	}

	e.observeDecision(decision)
	e.info("Step processed",
		"requisition_id", cmd.RequisitionID,
		"approver", cmd.ApproverEmail,
		"decision", decision,
		"step_order", outcome.Step.StepOrder,
		"advanced", outcome.Advanced,
		"completed", outcome.Completed,
	)

	req := outcome.Requisition
	switch {
	case outcome.Rejected:
		e.observeCompletion(entity.StatusRejected)
		e.emit(ctx, event.NewEvent(event.TypeRequisitionRejected, req.ID, req.ReferenceCode, map[string]interface{}{
			event.PayloadActor:     cmd.ApproverEmail,
			event.PayloadStepOrder: outcome.Step.StepOrder,
		}))
	case outcome.Advanced:
		e.observeAdvance()
		e.emitNextApprovers(ctx, req, outcome.NextApprovers)
	case outcome.Completed:
		e.observeCompletion(entity.StatusApproved)
		e.emit(ctx, event.NewEvent(event.TypeRequisitionApproved, req.ID, req.ReferenceCode, map[string]interface{}{
			event.PayloadActor: cmd.ApproverEmail,
		}))
		if !req.NoDownstreamDocumentRequired {
			e.generateDocument(ctx, outcome)
		}
	}

	return outcome, nil
}

func (e *engineImpl) reject(ctx context.Context, machine domainwf.StateMachine, req *entity.Requisition, step *entity.WorkflowStep, now time.Time) error {
	if err := machine.Fire(ctx, domainwf.TriggerReject); err != nil {
		return err
	}

	if _, err := e.repos.Steps.SkipPending(ctx, req.ID, now); err != nil {
		return fmt.Errorf("failed to skip pending steps: %w", err)
	}
	for _, s := range req.Steps {
		if s.Status == entity.StepStatusPending {
			s.Status = entity.StepStatusSkipped
		}
	}

	req.Status = machine.State().String()
	req.RejectedBy = step.ApproverName
	req.RejectedAt = &now
	req.RejectionReason = step.Comments
	return nil
}

func (e *engineImpl) advance(ctx context.Context, machine domainwf.StateMachine, req *entity.Requisition, order int, now time.Time, outcome *StepOutcome) error {
	next := order + 1
	if pending := req.PendingAt(next); len(pending) > 0 {
		if err := machine.Fire(ctx, domainwf.TriggerAdvance); err != nil {
			return err
		}
		req.CurrentStepOrder = next
		outcome.Advanced = true
		outcome.NextApprovers = pending
		return nil
	}

	if err := machine.Fire(ctx, domainwf.TriggerComplete); err != nil {
		return err
	}
	req.Status = machine.State().String()
	req.CurrentStepOrder = order
	req.FinalApprovalDate = &now
	req.FinalApprover = FinalApprover(req.Steps)
	outcome.Completed = true

	if req.NoDownstreamDocumentRequired {
		req.DocumentStatus = entity.DocumentStatusNotRequired
		if err := e.repos.Requisitions.UpdateDocumentState(ctx, req.ID, req.DocumentStatus, "", "", nil); err != nil {
			return fmt.Errorf("failed to mark document not required: %w", err)
		}
	}
	return nil
}

// generateDocument runs after the approval committed; its failure is recorded
// on the requisition by the generator and never undoes the approval.
func (e *engineImpl) generateDocument(ctx context.Context, outcome *StepOutcome) {
	if e.documents == nil {
		return
	}

	req := outcome.Requisition
	po, err := e.documents.Generate(ctx, req.ID)
	if err != nil {
		e.error("Purchase order generation failed after approval",
			"requisition_id", req.ID,
			"reference", req.ReferenceCode,
			"error", err,
		)
		outcome.DocumentError = err.Error()
	} else {
		outcome.PurchaseOrder = po
	}

	if fresh, ferr := e.repos.Requisitions.GetByID(ctx, req.ID); ferr == nil && fresh != nil {
		req.DocumentStatus = fresh.DocumentStatus
		req.DocumentReference = fresh.DocumentReference
		req.DocumentGeneratedAt = fresh.DocumentGeneratedAt
		req.DocumentError = fresh.DocumentError
	}
}

func (e *engineImpl) RequestModification(ctx context.Context, requisitionID int64, actorEmail, reason string) error {
	unlock := e.locks.Lock(requisitionID)
	defer unlock()

	return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.load(txCtx, requisitionID, false)
		if err != nil {
			return err
		}

		machine := BuildRequisitionStateMachine(domainwf.State(req.Status))
		if err := machine.Fire(txCtx, domainwf.TriggerRequestModification); err != nil {
			return err
		}

		now := e.now()
		if _, err := e.repos.Steps.SkipPending(txCtx, req.ID, now); err != nil {
			return fmt.Errorf("failed to skip pending steps: %w", err)
		}
		if err := e.repos.Records.Append(txCtx, &entity.ApprovalRecord{
			RequisitionID: req.ID,
			StepOrder:     req.CurrentStepOrder,
			ApproverName:  actorEmail,
			ApproverEmail: actorEmail,
			Decision:      entity.DecisionModificationRequested,
			Comments:      reason,
			CreatedAt:     now,
		}); err != nil {
			return fmt.Errorf("failed to append approval record: %w", err)
		}

		req.Status = machine.State().String()
		return e.repos.Requisitions.UpdateWorkflowState(txCtx, req)
	})
}

func (e *engineImpl) GetStateMachine(ctx context.Context, requisitionID int64) (domainwf.StateMachine, error) {
	req, err := e.repos.Requisitions.GetByID(ctx, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requisition: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrRequisitionNotFound, requisitionID)
	}

	state := domainwf.State(req.Status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrInvalidState, req.Status)
	}
	return BuildRequisitionStateMachine(state), nil
}

func (e *engineImpl) GetCurrentState(ctx context.Context, requisitionID int64) (domainwf.State, error) {
	machine, err := e.GetStateMachine(ctx, requisitionID)
	if err != nil {
		return "", err
	}
	return machine.State(), nil
}

// load reads the requisition with its steps; full also loads allocations and items.
func (e *engineImpl) load(ctx context.Context, id int64, full bool) (*entity.Requisition, error) {
	req, err := e.repos.Requisitions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requisition: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrRequisitionNotFound, id)
	}

	steps, err := e.repos.Steps.GetByRequisitionID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch steps: %w", err)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	req.Steps = steps

	if !full {
		return req, nil
	}

	if req.Allocations, err = e.repos.Allocations.GetByRequisitionID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}
	if req.Items, err = e.repos.Items.GetByRequisitionID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to fetch line items: %w", err)
	}
	return req, nil
}

// findPendingStep matches by case-folded email. Approvals only match the active
// group; a rejection may come from any pending step, earliest order first.
func findPendingStep(req *entity.Requisition, email, decision string) *entity.WorkflowStep {
	var fallback *entity.WorkflowStep
	for _, s := range req.Steps {
		if s.Status != entity.StepStatusPending || !s.MatchesApprover(email) {
			continue
		}
		if s.StepOrder == req.CurrentStepOrder {
			return s
		}
		if decision == entity.DecisionRejected && fallback == nil {
			fallback = s
		}
	}
	return fallback
}

func groupApproved(req *entity.Requisition, order int) bool {
	for _, s := range req.StepsAt(order) {
		if s.Status != entity.StepStatusApproved {
			return false
		}
	}
	return true
}

// FinalApprover returns the name-sorted, comma-joined approvers of the highest
// approved step order.
func FinalApprover(steps []*entity.WorkflowStep) string {
	highest := 0
	for _, s := range steps {
		if s.Status == entity.StepStatusApproved && s.StepOrder > highest {
			highest = s.StepOrder
		}
	}

	var names []string
	for _, s := range steps {
		if s.Status == entity.StepStatusApproved && s.StepOrder == highest {
			names = append(names, s.ApproverName)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (e *engineImpl) emitNextApprovers(ctx context.Context, req *entity.Requisition, steps []*entity.WorkflowStep) {
	if len(steps) == 0 {
		return
	}
	emails := make([]string, 0, len(steps))
	for _, s := range steps {
		emails = append(emails, s.ApproverEmail)
	}
	e.emit(ctx, event.NewEvent(event.TypeNextApproversActive, req.ID, req.ReferenceCode, map[string]interface{}{
		event.PayloadApproverEmails: emails,
		event.PayloadStepOrder:      steps[0].StepOrder,
	}))
}

// emit is fire-and-forget: handler failures are logged by the dispatcher.
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) observeDecision(decision string) {
	if e.metrics != nil {
		e.metrics.ObserveDecision(decision)
	}
}

func (e *engineImpl) observeAdvance() {
	if e.metrics != nil {
		e.metrics.ObserveAdvance()
	}
}

func (e *engineImpl) observeCompletion(status string) {
	if e.metrics != nil {
		e.metrics.ObserveCompletion(status)
	}
}

func (e *engineImpl) info(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) error(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}
