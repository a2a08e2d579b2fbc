package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared by the engine. Callers match with errors.Is.
var (
	// ErrConfiguration is fatal and surfaces when a schema, dependency graph or table is built.
	ErrConfiguration = goerr.New("configuration error")
	// ErrTransport covers network failures and non-2xx responses.
	ErrTransport = goerr.New("transport error")
	// ErrUnauthorized is returned by transports on HTTP 401 so callers can distinguish it.
	ErrUnauthorized = goerr.New("unauthorized")
	// ErrEnvelope is returned when a response envelope carries a Result other than "OK".
	ErrEnvelope = goerr.New("server returned a failure envelope")
	// ErrValidation blocks a form submission before any network call.
	ErrValidation = goerr.New("form validation failed")
	// ErrResolution marks a failed option resolution; it is logged, never returned by the resolver.
	ErrResolution = goerr.New("options resolution failed")

	ErrRecordNotFound = goerr.New("record not found")
	ErrNoKeyField     = goerr.New("no key field defined")
	ErrTableDestroyed = goerr.New("table is destroyed")
	ErrFormClosed     = goerr.New("form is closed")
	ErrUnknownField   = goerr.New("unknown field")
	ErrNoAction       = goerr.New("no action configured")
	ErrCancelled      = goerr.New("operation cancelled")
)

// Context keys for error values
const (
	FieldNameKey  = "field"
	EndpointKey   = "endpoint"
	StatusCodeKey = "status_code"
	RecordKeyKey  = "record_key"
	MessageKey    = "message"
	TableIDKey    = "table_id"
	FormKindKey   = "form_kind"
)
