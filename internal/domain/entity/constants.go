package entity

// Status constants for Requisition
const (
	StatusDraft                = "DRAFT"
	StatusSubmitted            = "SUBMITTED"
	StatusApproved             = "APPROVED"
	StatusRejected             = "REJECTED"
	StatusRequiresModification = "REQUIRES_MODIFICATION"
)

// Step status constants for WorkflowStep
const (
	StepStatusPending  = "PENDING"
	StepStatusApproved = "APPROVED"
	StepStatusRejected = "REJECTED"
	StepStatusSkipped  = "SKIPPED"
)

// Decision constants for ApprovalRecord
const (
	DecisionApproved              = "APPROVED"
	DecisionRejected              = "REJECTED"
	DecisionModificationRequested = "MODIFICATION_REQUESTED"
)

// Approver role labels
const (
	RoleCostCenterApprover = "COST_CENTER_APPROVER"
	RoleITHead             = "IT_HOD"
	RoleCSHead             = "CS_HOD"
	RoleCFO                = "CFO"
	RoleCEO                = "CEO"
)

// FinalApprovalSuffix marks the role label of the step that closes the chain.
const FinalApprovalSuffix = " (Final Approval)"

// Department tags carried on generated steps
const (
	DepartmentCostCenter = "COST_CENTER"
	DepartmentIT         = "IT"
	DepartmentCS         = "CS"
	DepartmentFinance    = "FINANCE"
	DepartmentManagement = "MANAGEMENT"
)

// Named monetary thresholds, denominated in base currency
const (
	ThresholdFixedAssetCFO = "fixed_asset_cfo"
	ThresholdCEO           = "ceo"
)

// Downstream document status constants
const (
	DocumentStatusNone        = ""
	DocumentStatusNotRequired = "NOT_REQUIRED"
	DocumentStatusGenerated   = "GENERATED"
	DocumentStatusFailed      = "FAILED"
)

// System config key prefixes for persisted overrides
const (
	ConfigKeyThresholdPrefix    = "threshold."
	ConfigKeyExchangeRatePrefix = "fx."
)
