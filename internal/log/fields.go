package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldUserID      = "user_id"
	FieldUsername    = "username"
	FieldTxID        = "transaction_id"
	FieldCount       = "count"
	FieldSequence    = "sequence"
	FieldScope       = "scope"
	FieldSearch      = "search"
	FieldCategory    = "category"
	FieldView        = "view"
	FieldRedirect    = "redirect"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentSession      = "session"
	ComponentAccess       = "access"
	ComponentLedger       = "ledger"
	ComponentTransactions = "transactions"
	ComponentStats        = "stats"
	ComponentAdmin        = "admin"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentTrace        = "trace"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpRestore  = "restore"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpFetch    = "fetch"
	OpStats    = "stats"
	OpPublish  = "publish"
	OpExport   = "export"
	OpMigrate  = "migrate"
	OpPersist  = "persist"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message and its taxonomy bucket
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if errorType != "" {
			f[FieldErrorType] = errorType
		}
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction identity fields
func (f LogFields) WithTransaction(id, userID int64) LogFields {
	f[FieldTxID] = id
	if userID != 0 {
		f[FieldUserID] = userID
	}
	return f
}

// WithQuery adds server-side filter fields
func (f LogFields) WithQuery(search, category string) LogFields {
	if search != "" {
		f[FieldSearch] = search
	}
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
