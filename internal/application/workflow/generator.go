package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// allocationTolerance is the largest accepted gap between allocations and the total.
var allocationTolerance = decimal.NewFromFloat(0.01)

// Plan is the output of step generation: the ordered steps plus the
// currency conversion the thresholds were compared against.
type Plan struct {
	Steps        []*entity.WorkflowStep
	ExchangeRate decimal.NullDecimal
	BaseAmount   decimal.NullDecimal
	TotalSteps   int
}

// StepGenerator computes the approval chain for a requisition
type StepGenerator interface {
	// Generate returns the ordered steps; parallel groups share a StepOrder.
	Generate(ctx context.Context, req *entity.Requisition) ([]*entity.WorkflowStep, error)

	// Plan is Generate plus the resolved exchange rate and base amount.
	Plan(ctx context.Context, req *entity.Requisition) (*Plan, error)
}

type stepGenerator struct {
	thresholds port.ThresholdResolver
	roles      port.RoleDirectory
}

// NewStepGenerator creates a step generator. It only reads from its collaborators.
func NewStepGenerator(thresholds port.ThresholdResolver, roles port.RoleDirectory) StepGenerator {
	return &stepGenerator{
		thresholds: thresholds,
		roles:      roles,
	}
}

func (g *stepGenerator) Generate(ctx context.Context, req *entity.Requisition) ([]*entity.WorkflowStep, error) {
	plan, err := g.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return plan.Steps, nil
}

func (g *stepGenerator) Plan(ctx context.Context, req *entity.Requisition) (*Plan, error) {
	if err := validateForGeneration(req); err != nil {
		return nil, err
	}

	b := &chainBuilder{}

	// Group 1: one parallel step per unique (approver email, cost center).
	seeds := seedApprovers(req.Allocations)
	b.parallel(seeds, "")

	if req.IsITRelated {
		if err := g.appendRole(ctx, b, entity.RoleITHead, entity.DepartmentIT, false); err != nil {
			return nil, err
		}
	}
	if err := g.appendRole(ctx, b, entity.RoleCSHead, entity.DepartmentCS, false); err != nil {
		return nil, err
	}

	// A paper approval already exists; amounts no longer route, so a missing
	// rate leaves the conversion unknown instead of failing.
	if req.HasPreSignedApproval {
		plan := &Plan{}
		rate, base, err := ConvertToBase(ctx, g.thresholds, req.Currency, req.TotalAmount)
		switch {
		case err == nil:
			plan.ExchangeRate, plan.BaseAmount = decimal.NewNullDecimal(rate), decimal.NewNullDecimal(base)
		case !errors.Is(err, domainwf.ErrConfigurationMissing):
			return nil, err
		}
		return b.finish(plan), nil
	}

	rate, base, err := ConvertToBase(ctx, g.thresholds, req.Currency, req.TotalAmount)
	if err != nil {
		return nil, err
	}
	plan := &Plan{ExchangeRate: decimal.NewNullDecimal(rate), BaseAmount: decimal.NewNullDecimal(base)}

	cfoThreshold, err := g.thresholds.GetThreshold(ctx, entity.ThresholdFixedAssetCFO)
	if err != nil {
		return nil, err
	}
	ceoThreshold, err := g.thresholds.GetThreshold(ctx, entity.ThresholdCEO)
	if err != nil {
		return nil, err
	}

	switch {
	case !req.IsFixedAsset:
		err = g.appendRole(ctx, b, entity.RoleCFO, entity.DepartmentFinance, true)
	case base.LessThan(cfoThreshold):
		b.parallel(seeds, entity.FinalApprovalSuffix)
	default:
		needsCEO := base.GreaterThan(ceoThreshold)
		err = g.appendRole(ctx, b, entity.RoleCFO, entity.DepartmentFinance, !needsCEO)
		if err == nil && needsCEO {
			err = g.appendRole(ctx, b, entity.RoleCEO, entity.DepartmentManagement, true)
		}
	}
	if err != nil {
		return nil, err
	}

	return b.finish(plan), nil
}

func (g *stepGenerator) appendRole(ctx context.Context, b *chainBuilder, role, department string, final bool) error {
	approver, err := g.roles.Resolve(ctx, role)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", role, err)
	}

	label := role
	if final {
		label += entity.FinalApprovalSuffix
	}
	b.sequential(approver, label, department)
	return nil
}

// ConvertToBase returns the exchange rate and the amount in base currency.
// Amounts already in base currency convert at rate 1 without a lookup.
func ConvertToBase(ctx context.Context, resolver port.ThresholdResolver, currency string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if isBaseCurrency(resolver, currency) {
		return decimal.NewFromInt(1), amount, nil
	}

	rate, err := resolver.GetExchangeRate(ctx, currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return rate, amount.Mul(rate), nil
}

func isBaseCurrency(resolver port.ThresholdResolver, currency string) bool {
	return strings.EqualFold(strings.TrimSpace(currency), resolver.BaseCurrency())
}

func validateForGeneration(req *entity.Requisition) error {
	if req == nil {
		return domainwf.NewValidationError("requisition", "is required")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return domainwf.NewValidationError("currency", "is required")
	}
	if len(seedApprovers(req.Allocations)) == 0 {
		return domainwf.NewValidationError("allocations", "at least one cost center with approver name and email is required")
	}

	diff := req.AllocationTotal().Sub(req.TotalAmount).Abs()
	if diff.GreaterThan(allocationTolerance) {
		return domainwf.NewValidationError("allocations",
			fmt.Sprintf("sum %s does not match total %s", req.AllocationTotal().StringFixed(2), req.TotalAmount.StringFixed(2)))
	}
	return nil
}

// seedApprovers keeps the first allocation of every (email, cost center) pair,
// in declaration order. Allocations without a named approver are not seeds.
func seedApprovers(allocations []*entity.CostCenterAllocation) []*entity.CostCenterAllocation {
	seen := make(map[string]bool, len(allocations))
	var seeds []*entity.CostCenterAllocation
	for _, a := range allocations {
		if strings.TrimSpace(a.ApproverName) == "" || strings.TrimSpace(a.ApproverEmail) == "" {
			continue
		}
		key := entity.NormalizeEmail(a.ApproverEmail) + "|" + strings.TrimSpace(a.CostCenter)
		if seen[key] {
			continue
		}
		seen[key] = true
		seeds = append(seeds, a)
	}
	return seeds
}

// chainBuilder hands out step orders as steps are appended.
type chainBuilder struct {
	steps []*entity.WorkflowStep
	order int
}

func (b *chainBuilder) parallel(seeds []*entity.CostCenterAllocation, suffix string) {
	b.order++
	for _, a := range seeds {
		role := a.ApproverRole
		if role == "" {
			role = entity.RoleCostCenterApprover
		}
		b.steps = append(b.steps, &entity.WorkflowStep{
			StepOrder:     b.order,
			ApproverName:  strings.TrimSpace(a.ApproverName),
			ApproverEmail: strings.TrimSpace(a.ApproverEmail),
			ApproverRole:  role + suffix,
			Department:    a.CostCenter,
			Status:        entity.StepStatusPending,
			IsRequired:    true,
			IsParallel:    true,
		})
	}
}

func (b *chainBuilder) sequential(approver port.Approver, role, department string) {
	b.order++
	b.steps = append(b.steps, &entity.WorkflowStep{
		StepOrder:     b.order,
		ApproverName:  approver.Name,
		ApproverEmail: approver.Email,
		ApproverRole:  role,
		Department:    department,
		Status:        entity.StepStatusPending,
		IsRequired:    true,
	})
}

func (b *chainBuilder) finish(plan *Plan) *Plan {
	plan.Steps = b.steps
	plan.TotalSteps = b.order
	return plan
}
