package log

import (
	"maps"
	"slices"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTenantID      = "tenant_id"
	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldTemplateID    = "template_id"
	FieldMonth         = "month"
	FieldAmount        = "amount"
	FieldDuration      = "duration_ms"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRecurring = "recurring"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentReport    = "report"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithScope adds the tenant and user an operation runs for
func (f LogFields) WithScope(tenantID, userID string) LogFields {
	f[FieldTenantID] = tenantID
	f[FieldUserID] = userID
	return f
}

func (f LogFields) WithTransaction(id, month string) LogFields {
	f[FieldTransactionID] = id
	if month != "" {
		f[FieldMonth] = month
	}
	return f
}

// ToSlice converts LogFields to key/value pairs for slog, sorted by key
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		slice = append(slice, k, f[k])
	}
	return slice
}
