package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequisitionSubmitted Type = "requisition.submitted"
	TypeNextApproversActive  Type = "requisition.next_approvers_active"
	TypeRequisitionApproved  Type = "requisition.approved"
	TypeRequisitionRejected  Type = "requisition.rejected"
	TypePurchaseOrderCreated Type = "purchase_order.generated"
	TypePurchaseOrderFailed  Type = "purchase_order.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequisitionSubmitted,
		TypeNextApproversActive,
		TypeRequisitionApproved,
		TypeRequisitionRejected,
		TypePurchaseOrderCreated,
		TypePurchaseOrderFailed:
		return true
	default:
		return false
	}
}
