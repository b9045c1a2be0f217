package log

import "sort"

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldMovementID  = "movement_id"
	FieldPlanID      = "plan_id"
	FieldSeq         = "seq"
	FieldDirection   = "direction"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldDueDate     = "due_date"
	FieldWarnings    = "warnings"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentSchedule = "schedule"
	ComponentMovement = "movement"
	ComponentPlan     = "plan"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentCache    = "cache"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpImport   = "import"
	OpPay      = "pay"
	OpSync     = "sync"
	OpScan     = "scan"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder for structured log fields.
type LogFields map[string]any

// NewFields creates a new LogFields instance.
func NewFields() LogFields {
	return make(LogFields)
}

// WithOwner adds the owner field.
func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithError adds the error field.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds the operation field.
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMovement adds movement-related fields.
func (f LogFields) WithMovement(id int64, direction, category string, amountCents int64) LogFields {
	f[FieldMovementID] = id
	f[FieldDirection] = direction
	f[FieldCategory] = category
	f[FieldAmountCents] = amountCents
	return f
}

// WithPlan adds plan-related fields.
func (f LogFields) WithPlan(planID int64, seq int) LogFields {
	f[FieldPlanID] = planID
	f[FieldSeq] = seq
	return f
}

// ToSlice converts LogFields to a slice for slog. Keys are emitted in
// sorted order so records for the same call site always line up.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
