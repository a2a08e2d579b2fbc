package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for grid definition validation
var (
	ErrConfigNotFound    = goerr.New("grid definition file not found")
	ErrInvalidConfig     = goerr.New("invalid grid definition")
	ErrDuplicateTableID  = goerr.New("duplicate table ID")
	ErrDuplicateFieldID  = goerr.New("duplicate field name")
	ErrDuplicateOptionID = goerr.New("duplicate option value")
	ErrInvalidFieldType  = goerr.New("invalid field type")
	ErrMissingOptions    = goerr.New("select/radio/datalist field requires options")
	ErrMissingName       = goerr.New("name is required")
)

// Context keys for error values
const (
	ConfigPathKey  = "config_path"
	TableIDKey     = "table_id"
	FieldIDKey     = "field_id"
	FieldTypeKey   = "field_type"
	OptionIDKey    = "option_id"
	FieldIndexKey  = "field_index"
	OptionIndexKey = "option_index"
)
