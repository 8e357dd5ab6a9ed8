package shared

// =====================================================
// TASK TYPES
// =====================================================
// One constant per queue message kind. Gateway-facing tasks carry the
// refund id as their group key so they stay ordered per refund.
const (
	TypeProcessRefund = "refund:process"
	TypeCheckGateway  = "refund:check_gateway"
	TypeApprovalTick  = "approval:tick"
	TypeNotify        = "notification:send"
	TypeNotifyRetry   = "notification:retry_failed"
	TypeGatewaySweep  = "refund:gateway_sweep"
)

// =====================================================
// QUEUES
// =====================================================
const (
	QueueGateway      = "gateway"      // PROCESS_REFUND, CHECK_GATEWAY
	QueueApproval     = "approval"     // APPROVAL_TICK
	QueueNotification = "notification" // NOTIFY
)

// =====================================================
// NOTIFICATION EVENTS
// =====================================================
type EventKind string

const (
	EventRefundCompleted   EventKind = "refund.completed"
	EventRefundFailed      EventKind = "refund.failed"
	EventRefundRejected    EventKind = "refund.rejected"
	EventRefundCanceled    EventKind = "refund.canceled"
	EventApprovalRequested EventKind = "approval.requested"
	EventApprovalEscalated EventKind = "approval.escalated"
)

// =====================================================
// ROLES
// =====================================================
const (
	RoleMerchant = "MERCHANT" // merchant portal users
	RoleOperator = "OPERATOR" // back-office approvers
	RoleAdmin    = "ADMIN"    // platform operations
)

// CorrelationIDKey is the gin context / context.Context key carrying the
// request correlation id end to end.
const CorrelationIDKey = "correlation_id"

// CorrelationIDHeader is accepted and echoed on every request.
const CorrelationIDHeader = "X-Correlation-ID"
