package model

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Defaults of TableConfig
const (
	DefaultPageSize       = 10
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultListCacheTTL   = 30 * time.Second
	DefaultLoadingDelay   = time.Second
)

// DefaultPageSizes are offered when PageSizes is empty
var DefaultPageSizes = []int{10, 25, 50, 100}

// ListFunc loads a page in process instead of calling a list endpoint
type ListFunc func(ctx context.Context, params Params) (*ListResponse, error)

// RecordFunc performs a create, update or delete in process
type RecordFunc func(ctx context.Context, data Params) (*RecordResponse, error)

// ListAction is either an endpoint or a function
type ListAction struct {
	URL  string
	Func ListFunc
}

// IsSet reports whether the action is configured
func (a ListAction) IsSet() bool {
	return a.URL != "" || a.Func != nil
}

// RecordAction is either an endpoint or a function
type RecordAction struct {
	URL  string
	Func RecordFunc
}

// IsSet reports whether the action is configured
func (a RecordAction) IsSet() bool {
	return a.URL != "" || a.Func != nil
}

// Actions of a table. Create, Update and Delete are optional; an unset action
// disables the operation.
type Actions struct {
	List   ListAction
	Create RecordAction
	Update RecordAction
	Delete RecordAction
}

// DeleteConfirmation is handed to TableConfig.DeleteConfirmation before a
// delete. Setting Cancel aborts it and CancelMessage, when set, is shown as an error.
type DeleteConfirmation struct {
	Record        Record
	Message       string
	Cancel        bool
	CancelMessage string
}

// TableConfig configures one table. Zero values take the defaults of Normalize.
type TableConfig struct {
	ID      string
	Actions Actions

	Paging    bool
	PageSize  int
	PageSizes []int

	Sorting      bool
	MultiSorting bool
	// MultiSortingCtrlKey requires a modifier to add a sort column; nil means true
	MultiSortingCtrlKey *bool
	DefaultSorting      string

	ToolbarSearch  bool
	SearchDebounce time.Duration

	// ListCacheTTL is how long list responses of a URL action are reused.
	// nil takes the default; zero or a negative value disables the list cache.
	ListCacheTTL *time.Duration
	// ForcePost makes option and list fetches use POST; nil means true
	ForcePost *bool
	// LoadingDelay postpones the loading indicator. nil takes the default;
	// zero shows it as soon as a load starts.
	LoadingDelay *time.Duration

	SaveUserPreferences bool
	Selecting           bool
	MultiSelect         bool

	// ListQueryParams adds parameters to every list request
	ListQueryParams func() Params
	// DeleteConfirmation may cancel a delete
	DeleteConfirmation func(*DeleteConfirmation)

	Messages Messages
}

// RequireCtrlKey reports whether adding a sort column needs a modifier
func (c TableConfig) RequireCtrlKey() bool {
	return boolOr(c.MultiSortingCtrlKey, true)
}

// CacheTTL is the effective list cache TTL. A result <= 0 disables the cache.
func (c TableConfig) CacheTTL() time.Duration {
	return durationOr(c.ListCacheTTL, DefaultListCacheTTL)
}

// IndicatorDelay is the effective loading indicator delay
func (c TableConfig) IndicatorDelay() time.Duration {
	return max(durationOr(c.LoadingDelay, DefaultLoadingDelay), 0)
}

// UsePost reports whether fetches are sent as POST
func (c TableConfig) UsePost() bool {
	return boolOr(c.ForcePost, true)
}

// Normalize fills defaults and validates the configuration. A PageSize that
// is not one of PageSizes is replaced by the first page size.
func (c TableConfig) Normalize() (TableConfig, error) {
	if !c.Actions.List.IsSet() {
		return c, goerr.Wrap(ErrConfiguration, "list action is required", goerr.V(TableIDKey, c.ID))
	}

	if len(c.PageSizes) == 0 {
		c.PageSizes = slices.Clone(DefaultPageSizes)
	}
	for _, size := range c.PageSizes {
		if size <= 0 {
			return c, goerr.Wrap(ErrConfiguration, "page sizes must be positive",
				goerr.V(TableIDKey, c.ID), goerr.V("page_sizes", c.PageSizes))
		}
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if !slices.Contains(c.PageSizes, c.PageSize) {
		c.PageSize = c.PageSizes[0]
	}

	if c.SearchDebounce == 0 {
		c.SearchDebounce = DefaultSearchDebounce
	}
	if c.ListCacheTTL == nil {
		c.ListCacheTTL = Duration(DefaultListCacheTTL)
	}
	if c.LoadingDelay == nil {
		c.LoadingDelay = Duration(DefaultLoadingDelay)
	}
	if c.DefaultSorting != "" {
		if _, err := ParseSorting(c.DefaultSorting); err != nil {
			return c, goerr.Wrap(err, "invalid default sorting", goerr.V(TableIDKey, c.ID))
		}
	}

	c.Messages = c.Messages.withDefaults()
	return c, nil
}

// Duration returns a pointer to d, for optional durations of TableConfig
func Duration(d time.Duration) *time.Duration {
	return &d
}

func durationOr(p *time.Duration, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	return *p
}

// Messages are the user facing strings. Placeholders {0}, {1}, ... are
// filled by Format.
type Messages struct {
	ServerCommunicationError string `toml:"server_communication_error"`
	LoadingMessage           string `toml:"loading_message"`
	NoDataAvailable          string `toml:"no_data_available"`
	DeleteConfirmation       string `toml:"delete_confirmation"`
	Cancel                   string `toml:"cancel"`
	Error                    string `toml:"error"`
	CannotLoadOptionsFor     string `toml:"cannot_load_options_for"`
	PagingInfo               string `toml:"paging_info"`
	CannotDeleteRecords      string `toml:"cannot_delete_records"`
	SortingInfoPrefix        string `toml:"sorting_info_prefix"`
	SortingInfoNone          string `toml:"sorting_info_none"`
	Ascending                string `toml:"ascending"`
	Descending               string `toml:"descending"`
}

// DefaultMessages returns the English messages
func DefaultMessages() Messages {
	return Messages{
		ServerCommunicationError: "An error occurred while communicating to the server.",
		LoadingMessage:           "Loading records...",
		NoDataAvailable:          "No data available!",
		DeleteConfirmation:       "This record will be deleted. Are you sure?",
		Cancel:                   "Cancel",
		Error:                    "An error has occurred",
		CannotLoadOptionsFor:     "Cannot load options for field {0}!",
		PagingInfo:               "Showing {0}-{1} of {2}",
		CannotDeleteRecords:      "{0} of {1} records could not be deleted",
		SortingInfoPrefix:        "Sorting applied: ",
		SortingInfoNone:          "No sorting applied",
		Ascending:                "Ascending",
		Descending:               "Descending",
	}
}

func (m Messages) withDefaults() Messages {
	def := DefaultMessages()
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&m.ServerCommunicationError, def.ServerCommunicationError)
	fill(&m.LoadingMessage, def.LoadingMessage)
	fill(&m.NoDataAvailable, def.NoDataAvailable)
	fill(&m.DeleteConfirmation, def.DeleteConfirmation)
	fill(&m.Cancel, def.Cancel)
	fill(&m.Error, def.Error)
	fill(&m.CannotLoadOptionsFor, def.CannotLoadOptionsFor)
	fill(&m.PagingInfo, def.PagingInfo)
	fill(&m.CannotDeleteRecords, def.CannotDeleteRecords)
	fill(&m.SortingInfoPrefix, def.SortingInfoPrefix)
	fill(&m.SortingInfoNone, def.SortingInfoNone)
	fill(&m.Ascending, def.Ascending)
	fill(&m.Descending, def.Descending)
	return m
}

// Format replaces {0}, {1}, ... in msg with args
func Format(msg string, args ...any) string {
	for i, arg := range args {
		msg = strings.ReplaceAll(msg, "{"+strconv.Itoa(i)+"}", fmt.Sprint(arg))
	}
	return msg
}
