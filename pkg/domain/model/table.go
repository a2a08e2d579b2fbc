package model

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// Load parameter names of the list action
const (
	ParamStartIndex = "jtStartIndex"
	ParamPageSize   = "jtPageSize"
	ParamSorting    = "jtSorting"
	ParamQuery      = "q"
	ParamQueryField = "opt"
)

// SortSpec is one entry of the sort list
type SortSpec struct {
	Field     string              `json:"fieldName"`
	Direction types.SortDirection `json:"direction"`
}

func (s SortSpec) String() string {
	return s.Field + " " + s.Direction.String()
}

// Sorting is the ordered sort list, primary first. A field appears at most once.
type Sorting []SortSpec

// String renders the jtSorting expression, e.g. "name ASC, age DESC"
func (s Sorting) String() string {
	parts := make([]string, len(s))
	for i, spec := range s {
		parts[i] = spec.String()
	}
	return strings.Join(parts, ", ")
}

// Index returns the position of field in the list or -1
func (s Sorting) Index(field string) int {
	return slices.IndexFunc(s, func(spec SortSpec) bool { return spec.Field == field })
}

// Direction returns the active direction of field
func (s Sorting) Direction(field string) (types.SortDirection, bool) {
	if i := s.Index(field); i >= 0 {
		return s[i].Direction, true
	}
	return "", false
}

// Clone returns an independent copy
func (s Sorting) Clone() Sorting {
	if s == nil {
		return Sorting{}
	}
	return slices.Clone(s)
}

// ParseSorting parses a sort expression such as "name, age DESC". A missing
// direction means ASC, empty segments are skipped, and repeated fields keep
// their first occurrence.
func ParseSorting(expr string) (Sorting, error) {
	out := Sorting{}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.Fields(part)
		spec := SortSpec{Field: tokens[0], Direction: types.SortAsc}
		switch len(tokens) {
		case 1:
		case 2:
			d, err := types.ParseSortDirection(tokens[1])
			if err != nil {
				return nil, goerr.Wrap(ErrConfiguration, "invalid sort direction", goerr.V("expression", part))
			}
			spec.Direction = d
		default:
			return nil, goerr.Wrap(ErrConfiguration, "invalid sort expression", goerr.V("expression", part))
		}
		if out.Index(spec.Field) >= 0 {
			continue
		}
		out = append(out, spec)
	}
	return out, nil
}

// TableState is a snapshot of a table. Snapshots handed out are copies.
type TableState struct {
	Records       []Record
	TotalCount    int
	CurrentPage   int
	PageSize      int
	Sorting       Sorting
	SearchQueries map[string]string
	SelectedKeys  []string
	IsLoading     bool
}

// TotalPages returns ceil(TotalCount/PageSize), at least 1
func (s TableState) TotalPages() int {
	return TotalPages(s.TotalCount, s.PageSize)
}

// Clone returns a deep copy of the state
func (s TableState) Clone() TableState {
	out := s
	out.Records = make([]Record, len(s.Records))
	for i, r := range s.Records {
		out.Records[i] = r.Clone()
	}
	out.Sorting = s.Sorting.Clone()
	out.SearchQueries = maps.Clone(s.SearchQueries)
	if out.SearchQueries == nil {
		out.SearchQueries = map[string]string{}
	}
	out.SelectedKeys = slices.Clone(s.SelectedKeys)
	return out
}

// TotalPages returns the number of pages for total records, at least 1
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage keeps page within [1, totalPages]
func ClampPage(page, total, pageSize int) int {
	return max(1, min(page, TotalPages(total, pageSize)))
}

// PageNumbers returns the page buttons to show: every page up to seven pages,
// otherwise the first two, the last two and the current page with its neighbours.
func PageNumbers(current, totalPages int) []int {
	if totalPages <= 7 {
		out := make([]int, totalPages)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	set := map[int]struct{}{1: {}, 2: {}, totalPages - 1: {}, totalPages: {}}
	for i := max(1, current-1); i <= min(totalPages, current+1); i++ {
		set[i] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// PagingInfo describes the visible slice of the result set
type PagingInfo struct {
	CurrentPage int
	PageSize    int
	TotalPages  int
	TotalCount  int
	// Start and End are 1-based record positions; both are 0 for an empty set
	Start int
	End   int
}

// NewPagingInfo computes paging information for a state
func NewPagingInfo(page, pageSize, total int) PagingInfo {
	info := PagingInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalPages:  TotalPages(total, pageSize),
		TotalCount:  total,
	}
	if total > 0 && pageSize > 0 {
		info.Start = (page-1)*pageSize + 1
		info.End = min(page*pageSize, total)
	}
	return info
}

// SearchParams renders search queries as the parallel q/opt lists, ordered by
// fieldOrder. Empty terms are left out. It returns nil when nothing remains.
func SearchParams(queries map[string]string, fieldOrder []string) Params {
	var terms, fields []string
	seen := make(map[string]struct{}, len(queries))
	for _, name := range fieldOrder {
		if q := queries[name]; q != "" {
			terms = append(terms, q)
			fields = append(fields, name)
		}
		seen[name] = struct{}{}
	}
	// queries for fields outside fieldOrder keep a stable order
	for _, name := range slices.Sorted(maps.Keys(queries)) {
		if _, ok := seen[name]; ok || queries[name] == "" {
			continue
		}
		terms = append(terms, queries[name])
		fields = append(fields, name)
	}
	if len(terms) == 0 {
		return nil
	}
	return Params{ParamQuery: terms, ParamQueryField: fields}
}

// SearchQueriesFromParams rebuilds the search mapping from load parameters.
// It accepts Params built by the engine or decoded url.Values.
func SearchQueriesFromParams(params any) map[string]string {
	var terms, fields []string
	switch p := params.(type) {
	case Params:
		terms = stringList(p[ParamQuery])
		fields = stringList(p[ParamQueryField])
	case url.Values:
		terms = ListValue(p, ParamQuery)
		fields = ListValue(p, ParamQueryField)
	}

	out := make(map[string]string, len(terms))
	for i := 0; i < len(terms) && i < len(fields); i++ {
		if terms[i] == "" {
			continue
		}
		out[fields[i]] = terms[i]
	}
	return out
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = ValueString(item)
		}
		return out
	case string:
		return []string{x}
	default:
		return nil
	}
}

// ListQuery is a decoded list request, as seen by a backend
type ListQuery struct {
	StartIndex int
	PageSize   int
	Sorting    Sorting
	Search     map[string]string
}

// ParseListQuery decodes list request values. A zero PageSize means no paging.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Search: SearchQueriesFromParams(values)}

	if v := values.Get(ParamStartIndex); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, goerr.Wrap(ErrValidation, "invalid start index", goerr.V(ParamStartIndex, v))
		}
		q.StartIndex = n
	}
	if v := values.Get(ParamPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, goerr.Wrap(ErrValidation, "invalid page size", goerr.V(ParamPageSize, v))
		}
		q.PageSize = n
	}
	if v := values.Get(ParamSorting); v != "" {
		s, err := ParseSorting(v)
		if err != nil {
			return q, goerr.Wrap(ErrValidation, "invalid sorting", goerr.V(ParamSorting, v))
		}
		q.Sorting = s
	}
	return q, nil
}
