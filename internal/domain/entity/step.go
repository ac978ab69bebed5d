package entity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// WorkflowStep is one approval step. Steps sharing a StepOrder form a parallel
// group and all must be approved before the requisition advances.
type WorkflowStep struct {
	ID            int64      `json:"id"`
	RequisitionID int64      `json:"requisition_id"`
	StepOrder     int        `json:"step_order"`
	ApproverName  string     `json:"approver_name"`
	ApproverEmail string     `json:"approver_email"`
	ApproverRole  string     `json:"approver_role"`
	Department    string     `json:"department"`
	Status        string     `json:"status"`
	IsRequired    bool       `json:"is_required"`
	IsParallel    bool       `json:"is_parallel"`
	ActionDate    *time.Time `json:"action_date,omitempty"`
	Comments      string     `json:"comments,omitempty"`
}

// ApprovalRecord is an immutable audit entry, appended once per decision.
type ApprovalRecord struct {
	ID            int64     `json:"id"`
	RequisitionID int64     `json:"requisition_id"`
	StepOrder     int       `json:"step_order"`
	ApproverName  string    `json:"approver_name"`
	ApproverEmail string    `json:"approver_email"`
	ApproverRole  string    `json:"approver_role"`
	Decision      string    `json:"decision"`
	Comments      string    `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeEmail case-folds an email address for identity comparison.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses identify the same approver.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// MatchesApprover reports whether the step belongs to the given email.
func (s *WorkflowStep) MatchesApprover(email string) bool {
	return SameEmail(s.ApproverEmail, email)
}
