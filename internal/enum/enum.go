package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

const (
	BarRequestStatusPending   = "pending"
	BarRequestStatusApproved  = "approved"
	BarRequestStatusRejected  = "rejected"
	BarRequestStatusCancelled = "cancelled"
)

const (
	FulfillmentStatusApproved = "approved"
	FulfillmentStatusRejected = "rejected"
)

const (
	ModificationStatusPending  = "pending"
	ModificationStatusApproved = "approved"
	ModificationStatusRejected = "rejected"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleSalesRep = "SALES_REP"
	UserRoleBar      = "BAR"
	UserRoleAdmin    = "ADMIN"
)

const (
	ModificationTypeExchange       = "exchange"
	ModificationTypeQuantityChange = "quantity_change"
	ModificationTypeReturn         = "return"
)

// ── Group B: Local labels (not stored) ──

// Bar request status as mirrored onto a cached table cart.
const (
	TableBarStatusNone    = "none"
	TableBarStatusPending = "pending"
	TableBarStatusGiven   = "given"
)
