package usecase

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/service/cache"
	"github.com/secmon-lab/gridcore/pkg/utils/async"
	"github.com/secmon-lab/gridcore/pkg/utils/errutil"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Table is the state machine of one data grid. It owns the rows and the
// paging, sorting, search and selection state, and is the only writer of
// them. Network calls are made without holding the state lock.
type Table struct {
	cfg       model.TableConfig
	schema    *model.Schema
	transport interfaces.Transport
	cache     *cache.Cache
	view      interfaces.View
	events    *EventBus
	prefs     *Preferences
	resolver  *OptionsResolver
	forms     *FormAssembler

	mu           sync.Mutex
	state        model.TableState
	selected     []string
	destroyed    bool
	searchTimer  *time.Timer
	form         *FormHandle
	editingKey   string
	columnsReady bool

	bg async.Group
}

// TableOption configures a Table
type TableOption func(*Table)

// WithView sets the view the table renders into
func WithView(v interfaces.View) TableOption {
	return func(t *Table) {
		t.view = v
	}
}

// WithTransport sets the transport used by URL actions and option endpoints
func WithTransport(tr interfaces.Transport) TableOption {
	return func(t *Table) {
		t.transport = tr
	}
}

// WithCache shares a response cache with other tables
func WithCache(c *cache.Cache) TableOption {
	return func(t *Table) {
		t.cache = c
	}
}

// WithEventBus shares an event bus
func WithEventBus(b *EventBus) TableOption {
	return func(t *Table) {
		t.events = b
	}
}

// WithPreferenceStore persists column settings, sorting and page size.
// It only takes effect when TableConfig.SaveUserPreferences is set.
func WithPreferenceStore(store interfaces.PreferenceStore) TableOption {
	return func(t *Table) {
		if store != nil {
			t.prefs = NewPreferences(store, t.cfg.ID, t.schema.Names())
		}
	}
}

// NewTable validates cfg and builds a table over schema. Saved preferences
// are applied before the first load.
func NewTable(ctx context.Context, cfg model.TableConfig, schema *model.Schema, opts ...TableOption) (*Table, error) {
	if schema == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "schema is required", goerr.V(model.TableIDKey, cfg.ID))
	}
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	t := &Table{
		cfg:    cfg,
		schema: schema,
		view:   nopView{},
		events: NewEventBus(),
		state: model.TableState{
			CurrentPage:   1,
			PageSize:      cfg.PageSize,
			Sorting:       model.Sorting{},
			SearchQueries: map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cache == nil {
		t.cache = cache.New()
	}

	if t.transport == nil {
		for name, url := range map[string]string{
			"list":   cfg.Actions.List.URL,
			"create": cfg.Actions.Create.URL,
			"update": cfg.Actions.Update.URL,
			"delete": cfg.Actions.Delete.URL,
		} {
			if url != "" {
				return nil, goerr.Wrap(model.ErrConfiguration, "URL action needs a transport",
					goerr.V(model.TableIDKey, cfg.ID), goerr.V("action", name))
			}
		}
	}

	t.resolver = NewOptionsResolver(t.transport, t.cache, WithForcePost(cfg.UsePost()))
	t.resolver.Register(schema.Fields())
	t.forms = NewFormAssembler(schema, t.resolver)

	if cfg.SaveUserPreferences && t.prefs != nil {
		t.applyPreferences(ctx)
	}

	return t, nil
}

// ID returns the table identifier
func (t *Table) ID() string { return t.cfg.ID }

// Schema returns the field schema
func (t *Table) Schema() *model.Schema { return t.schema }

// Config returns the normalized configuration
func (t *Table) Config() model.TableConfig { return t.cfg }

// Events returns the event bus of the table
func (t *Table) Events() *EventBus { return t.events }

// Resolver returns the options resolver of the table
func (t *Table) Resolver() *OptionsResolver { return t.resolver }

// Cache returns the response cache
func (t *Table) Cache() *cache.Cache { return t.cache }

// GetState returns a copy of the current state
func (t *Table) GetState() model.TableState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state.Clone()
	st.SelectedKeys = slices.Clone(t.selected)
	return st
}

// BuildLoadParams returns the parameters of the next list request: paging
// offsets when paging is on, the sort expression (explicit list or default
// sorting) when sorting is on, the q/opt search lists when toolbar search is
// on and a query is set, and the custom list query parameters.
func (t *Table) BuildLoadParams() model.Params {
	t.mu.Lock()
	params := t.buildLoadParamsLocked()
	t.mu.Unlock()

	if t.cfg.ListQueryParams != nil {
		maps.Copy(params, t.cfg.ListQueryParams())
	}
	return params
}

func (t *Table) buildLoadParamsLocked() model.Params {
	params := model.Params{}

	if t.cfg.Paging {
		params[model.ParamStartIndex] = (t.state.CurrentPage - 1) * t.state.PageSize
		params[model.ParamPageSize] = t.state.PageSize
	}

	if t.cfg.Sorting {
		if len(t.state.Sorting) > 0 {
			params[model.ParamSorting] = t.state.Sorting.String()
		} else if def := t.defaultSorting(); len(def) > 0 {
			params[model.ParamSorting] = def.String()
		}
	}

	if t.cfg.ToolbarSearch {
		maps.Copy(params, model.SearchParams(t.state.SearchQueries, t.schema.Names()))
	}

	return params
}

// defaultSorting parses DefaultSorting, dropping unknown and unsortable fields
func (t *Table) defaultSorting() model.Sorting {
	if t.cfg.DefaultSorting == "" {
		return nil
	}
	parsed, err := model.ParseSorting(t.cfg.DefaultSorting)
	if err != nil {
		return nil
	}
	return slices.DeleteFunc(parsed, func(s model.SortSpec) bool {
		f, ok := t.schema.Field(s.Field)
		return !ok || !f.IsSortable()
	})
}

// Load fetches the current page. A call made while a load is in flight is
// dropped and returns nil. On failure the error is shown through the view,
// logged, and returned; rows and paging state are kept.
// When the total shrank below the current page, the page is clamped and the
// clamped page is fetched before anything is rendered.
func (t *Table) Load(ctx context.Context, extra model.Params) error {
	moved, err := t.load(ctx, extra)
	if err != nil || !moved {
		return err
	}
	logging.From(ctx).Debug("current page is out of range, loading the last page",
		slog.String("table", t.cfg.ID), slog.Int("page", t.GetState().CurrentPage))
	_, err = t.load(ctx, extra)
	return err
}

func (t *Table) load(ctx context.Context, extra model.Params) (bool, error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return false, goerr.Wrap(model.ErrTableDestroyed, "cannot load", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	if t.state.IsLoading {
		t.mu.Unlock()
		logging.From(ctx).Debug("load dropped, another load is in flight", slog.String("table", t.cfg.ID))
		return false, nil
	}
	t.state.IsLoading = true
	t.mu.Unlock()

	stopIndicator := t.startLoadingIndicator()
	defer func() {
		t.mu.Lock()
		t.state.IsLoading = false
		t.mu.Unlock()
		stopIndicator()
	}()

	params := extra.Merge(t.BuildLoadParams())

	resp, err := t.fetchList(ctx, params)

	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return false, nil
	}
	moved := false
	if err == nil {
		moved = t.applyListLocked(resp)
	}
	t.mu.Unlock()

	if moved {
		return true, nil
	}

	t.render()

	if err != nil {
		msg := t.cfg.Messages.ServerCommunicationError
		if errors.Is(err, model.ErrEnvelope) && resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		t.view.ShowError(msg)
		err = goerr.Wrap(err, "failed to load records", goerr.V(model.TableIDKey, t.cfg.ID))
		return false, errutil.Handle(ctx, err, "failed to load records")
	}

	t.events.Emit(RecordsLoadedEvent{
		Records:    cloneRecords(resp.Records),
		TotalCount: resp.TotalRecordCount,
		Params:     params,
	})
	t.resolveColumnsInBackground(ctx)
	return false, nil
}

// applyListLocked stores a list response. It reports true when the response
// belongs to a page beyond the new total; the page is then clamped and the
// rows are left to the next load.
func (t *Table) applyListLocked(resp *model.ListResponse) bool {
	t.state.TotalCount = resp.TotalRecordCount
	if t.cfg.Paging && t.state.TotalCount > 0 {
		page := model.ClampPage(t.state.CurrentPage, t.state.TotalCount, t.state.PageSize)
		if page != t.state.CurrentPage {
			t.state.CurrentPage = page
			return true
		}
	}
	if t.state.TotalCount == 0 {
		t.state.CurrentPage = 1
	}
	t.state.Records = cloneRecords(resp.Records)

	present := make(map[string]struct{}, len(t.state.Records))
	for _, r := range t.state.Records {
		present[t.keyOf(r)] = struct{}{}
	}
	t.selected = slices.DeleteFunc(t.selected, func(k string) bool {
		_, ok := present[k]
		return !ok
	})
	return false
}

// fetchList calls the list action, through the cache for URL actions
func (t *Table) fetchList(ctx context.Context, params model.Params) (*model.ListResponse, error) {
	action := t.cfg.Actions.List

	if action.Func != nil {
		resp, err := action.Func(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "list function failed")
		}
		if resp == nil {
			return nil, goerr.Wrap(model.ErrEnvelope, "list function returned no response")
		}
		if err := resp.Err(); err != nil {
			return resp, err
		}
		if resp.TotalRecordCount == 0 {
			resp.TotalRecordCount = len(resp.Records)
		}
		return resp, nil
	}

	ttl := t.cfg.CacheTTL()
	if entry, ok := t.cache.Get(action.URL, params); ok && !entry.Expired(ttl, t.cache.Now()) {
		if resp, err := model.DecodeListResponse(entry.Payload); err == nil {
			logging.From(ctx).Debug("list served from cache", slog.String("key", entry.Key))
			return resp, nil
		}
	}

	var raw []byte
	var err error
	if t.cfg.UsePost() {
		raw, err = t.transport.Post(ctx, action.URL, params)
	} else {
		raw, err = t.transport.Get(ctx, action.URL, params)
	}
	if err != nil {
		return nil, err
	}

	resp, err := model.DecodeListResponse(raw)
	if err != nil {
		return resp, err
	}
	if ttl > 0 {
		t.cache.Set(action.URL, params, raw)
	}
	return resp, nil
}

// startLoadingIndicator shows the loading message after the configured
// delay. The returned func hides it again, if it was shown.
func (t *Table) startLoadingIndicator() func() {
	var (
		mu    sync.Mutex
		shown bool
		done  bool
	)
	timer := time.AfterFunc(t.cfg.IndicatorDelay(), func() {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		shown = true
		t.view.ShowLoading(t.cfg.Messages.LoadingMessage)
	})
	return func() {
		timer.Stop()
		mu.Lock()
		defer mu.Unlock()
		done = true
		if shown {
			t.view.HideLoading()
		}
	}
}

// Reload drops cached list responses and loads again
func (t *Table) Reload(ctx context.Context) error {
	t.clearListCache()
	return t.Load(ctx, nil)
}

func (t *Table) clearListCache() {
	if t.cfg.Actions.List.URL != "" {
		t.cache.Invalidate(t.cfg.Actions.List.URL)
	}
}

// SortByColumn cycles field through unsorted, ASC, DESC and unsorted again.
// Unless multi sorting is on, and the modifier is held when it is required,
// the sort list collapses to that column. The table is reloaded.
func (t *Table) SortByColumn(ctx context.Context, field string, modifier bool) error {
	f, ok := t.schema.Field(field)
	if !ok {
		return goerr.Wrap(model.ErrUnknownField, "cannot sort", goerr.V(model.FieldNameKey, field))
	}
	if !t.cfg.Sorting || !f.IsSortable() {
		return nil
	}

	t.mu.Lock()
	sorting := t.state.Sorting.Clone()
	direction := types.SortAsc
	sorted := true
	if i := sorting.Index(field); i >= 0 {
		if sorting[i].Direction == types.SortAsc {
			direction = types.SortDesc
			sorting[i].Direction = direction
		} else {
			sorting = slices.Delete(sorting, i, i+1)
			sorted = false
		}
	} else {
		sorting = append(sorting, model.SortSpec{Field: field, Direction: direction})
	}

	if !t.cfg.MultiSorting || (t.cfg.RequireCtrlKey() && !modifier) {
		sorting = model.Sorting{}
		if sorted {
			sorting = model.Sorting{{Field: field, Direction: direction}}
		}
	}
	t.state.Sorting = sorting
	t.mu.Unlock()

	t.view.RenderSorting(sorting.Clone())
	t.saveState(ctx)
	return t.Load(ctx, nil)
}

// ResetSorting clears the sort list and reloads
func (t *Table) ResetSorting(ctx context.Context) error {
	t.mu.Lock()
	t.state.Sorting = model.Sorting{}
	t.mu.Unlock()

	t.saveState(ctx)
	return t.Load(ctx, nil)
}

// SetSorting replaces the sort list without loading; the next load uses it.
// Unknown and unsortable fields are dropped.
func (t *Table) SetSorting(ctx context.Context, sorting model.Sorting) {
	if !t.cfg.Sorting {
		return
	}
	sorting = slices.DeleteFunc(sorting.Clone(), func(s model.SortSpec) bool {
		f, ok := t.schema.Field(s.Field)
		return !ok || !f.IsSortable()
	})

	t.mu.Lock()
	t.state.Sorting = sorting
	t.mu.Unlock()

	t.view.RenderSorting(sorting.Clone())
	t.saveState(ctx)
}

// ChangePage moves to page, clamped to [1, totalPages]. Nothing happens
// when the clamped page is the current one.
func (t *Table) ChangePage(ctx context.Context, page int) error {
	t.mu.Lock()
	page = model.ClampPage(page, t.state.TotalCount, t.state.PageSize)
	if page == t.state.CurrentPage {
		t.mu.Unlock()
		return nil
	}
	t.state.CurrentPage = page
	t.mu.Unlock()

	return t.Load(ctx, nil)
}

// ChangePageSize switches the page size and goes back to page 1
func (t *Table) ChangePageSize(ctx context.Context, size int) error {
	if size <= 0 {
		return goerr.Wrap(model.ErrValidation, "page size must be positive", goerr.V("page_size", size))
	}

	t.mu.Lock()
	t.state.PageSize = size
	t.state.CurrentPage = 1
	t.mu.Unlock()

	err := t.Load(ctx, nil)
	t.saveState(ctx)
	return err
}

// SetSearch sets the search term of field; an empty term removes it. The
// load is debounced, so rapid calls result in one request.
func (t *Table) SetSearch(ctx context.Context, field, term string) error {
	if _, ok := t.schema.Field(field); !ok {
		return goerr.Wrap(model.ErrUnknownField, "cannot search", goerr.V(model.FieldNameKey, field))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return goerr.Wrap(model.ErrTableDestroyed, "cannot search", goerr.V(model.TableIDKey, t.cfg.ID))
	}

	term = strings.TrimSpace(term)
	if term == "" {
		delete(t.state.SearchQueries, field)
	} else {
		t.state.SearchQueries[field] = term
	}
	t.state.CurrentPage = 1

	if t.searchTimer != nil {
		t.searchTimer.Stop()
	}
	bgCtx := context.WithoutCancel(ctx)
	t.searchTimer = time.AfterFunc(t.cfg.SearchDebounce, func() {
		t.mu.Lock()
		t.searchTimer = nil
		t.mu.Unlock()
		if err := t.Load(bgCtx, nil); err != nil {
			logging.From(bgCtx).Warn("debounced search load failed", logging.ErrAttr(err))
		}
	})
	return nil
}

// FlushSearch runs a pending debounced search load immediately
func (t *Table) FlushSearch(ctx context.Context) error {
	t.mu.Lock()
	pending := t.searchTimer != nil && t.searchTimer.Stop()
	t.searchTimer = nil
	t.mu.Unlock()

	if !pending {
		return nil
	}
	return t.Load(ctx, nil)
}

// ResetSearch clears every search term and reloads
func (t *Table) ResetSearch(ctx context.Context) error {
	t.mu.Lock()
	t.state.SearchQueries = map[string]string{}
	t.state.CurrentPage = 1
	if t.searchTimer != nil {
		t.searchTimer.Stop()
		t.searchTimer = nil
	}
	t.mu.Unlock()

	return t.Load(ctx, nil)
}

// PagingInfo describes the current page
func (t *Table) PagingInfo() model.PagingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.NewPagingInfo(t.state.CurrentPage, t.state.PageSize, t.state.TotalCount)
}

// PagingText renders the paging info message, empty when there are no records
func (t *Table) PagingText() string {
	info := t.PagingInfo()
	if info.TotalCount == 0 {
		return ""
	}
	return model.Format(t.cfg.Messages.PagingInfo, info.Start, info.End, info.TotalCount)
}

// PageNumbers returns the page buttons to render
func (t *Table) PageNumbers() []int {
	info := t.PagingInfo()
	return model.PageNumbers(info.CurrentPage, info.TotalPages)
}

// SortingInfo renders the active sort list for humans
func (t *Table) SortingInfo() string {
	t.mu.Lock()
	sorting := t.state.Sorting.Clone()
	t.mu.Unlock()

	if len(sorting) == 0 {
		return t.cfg.Messages.SortingInfoNone
	}
	parts := make([]string, len(sorting))
	for i, s := range sorting {
		title := s.Field
		if f, ok := t.schema.Field(s.Field); ok {
			title = f.Title
		}
		dir := t.cfg.Messages.Ascending
		if s.Direction == types.SortDesc {
			dir = t.cfg.Messages.Descending
		}
		parts[i] = title + " (" + dir + ")"
	}
	return t.cfg.Messages.SortingInfoPrefix + strings.Join(parts, ", ")
}

// DisplayText returns the cell text of field for record: the field's
// display func, checkbox labels, the option label, or the raw value.
func (t *Table) DisplayText(record model.Record, field string) string {
	f, ok := t.schema.Field(field)
	if !ok {
		return record.String(field)
	}
	if f.Display != nil {
		return f.Display(record)
	}

	v := record[field]
	if f.EffectiveKind() == types.FieldKindCheckbox && len(f.Values) > 0 {
		key := model.ValueString(v)
		if label, ok := f.Values[key]; ok {
			return label
		}
		return key
	}

	opts, ok := t.resolver.Resolved(field)
	if !ok {
		if static, isStatic := f.Options.(model.StaticOptions); isStatic {
			opts, ok = model.ResolvedOptions(static), true
		}
	}
	if !ok {
		return model.ValueString(v)
	}

	switch list := v.(type) {
	case []string, []any:
		var labels []string
		for _, item := range toStrings(list) {
			labels = append(labels, optionLabel(opts, item))
		}
		return strings.Join(labels, ", ")
	default:
		return optionLabel(opts, v)
	}
}

func optionLabel(opts model.ResolvedOptions, v any) string {
	if opt, ok := opts.Find(v); ok {
		return opt.DisplayText
	}
	return model.ValueString(v)
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = model.ValueString(item)
		}
		return out
	}
	return nil
}

// resolveColumnsInBackground resolves the dynamic option sources of listed
// columns once, then refreshes display texts without a list request.
func (t *Table) resolveColumnsInBackground(ctx context.Context) {
	t.mu.Lock()
	if t.columnsReady || t.destroyed {
		t.mu.Unlock()
		return
	}
	t.columnsReady = true
	t.mu.Unlock()

	var pending []model.FieldDescriptor
	for _, name := range t.schema.ColumnList() {
		f, _ := t.schema.Field(name)
		if model.IsDynamic(f.Options) && !t.resolver.Live().Has(name) {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return
	}

	t.bg.Go(ctx, "resolve-column-options", func(ctx context.Context) error {
		var eg errgroup.Group
		for _, f := range pending {
			eg.Go(func() error {
				opts := t.resolver.Resolve(ctx, f, &model.ProviderContext{})
				t.resolver.Store(f.Name, opts)
				return nil
			})
		}
		_ = eg.Wait()

		t.RefreshDisplayValues()
		return nil
	})
}

// WaitBackground blocks until background option resolution has finished
func (t *Table) WaitBackground() {
	t.bg.Wait()
}

// RefreshDisplayValues re-renders the rows from the current state
func (t *Table) RefreshDisplayValues() {
	t.mu.Lock()
	destroyed := t.destroyed
	t.mu.Unlock()
	if destroyed {
		return
	}
	t.render()
}

// Columns returns the headers of the visible columns
func (t *Table) Columns() []model.Column {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.columnsLocked()
}

func (t *Table) columnsLocked() []model.Column {
	var cols []model.Column
	for _, name := range t.schema.VisibleColumns() {
		f, _ := t.schema.Field(name)
		dir, _ := t.state.Sorting.Direction(name)
		cols = append(cols, model.Column{
			Name:       name,
			Title:      f.Title,
			Sortable:   t.cfg.Sorting && f.IsSortable(),
			Direction:  dir,
			Visibility: t.schema.Visibility(name),
		})
	}
	return cols
}

// Rows returns the current rows with their display texts
func (t *Table) Rows() []model.Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowsLocked(t.columnsLocked())
}

func (t *Table) rowsLocked(cols []model.Column) []model.Row {
	rows := make([]model.Row, 0, len(t.state.Records))
	for _, r := range t.state.Records {
		key := t.keyOf(r)
		texts := make(map[string]string, len(cols))
		for _, c := range cols {
			texts[c.Name] = t.DisplayText(r, c.Name)
		}
		rows = append(rows, model.Row{
			Key:      key,
			Record:   r.Clone(),
			Texts:    texts,
			Selected: slices.Contains(t.selected, key),
		})
	}
	return rows
}

func (t *Table) render() {
	t.mu.Lock()
	cols := t.columnsLocked()
	rows := t.rowsLocked(cols)
	info := model.NewPagingInfo(t.state.CurrentPage, t.state.PageSize, t.state.TotalCount)
	sorting := t.state.Sorting.Clone()
	t.mu.Unlock()

	t.view.RenderRows(cols, rows)
	if t.cfg.Paging {
		t.view.RenderPaging(info, model.PageNumbers(info.CurrentPage, info.TotalPages))
	}
	t.view.RenderSorting(sorting)
}

func (t *Table) keyOf(r model.Record) string {
	key, err := t.schema.KeyOf(r)
	if err != nil {
		return ""
	}
	return key
}

func (t *Table) indexOfLocked(key string) int {
	return slices.IndexFunc(t.state.Records, func(r model.Record) bool {
		return t.keyOf(r) == key
	})
}

// SelectRow marks key as selected. Without multi select it replaces the selection.
func (t *Table) SelectRow(key string) {
	t.changeSelection(func() bool {
		if slices.Contains(t.selected, key) || t.indexOfLocked(key) < 0 {
			return false
		}
		if !t.cfg.MultiSelect {
			t.selected = t.selected[:0]
		}
		t.selected = append(t.selected, key)
		return true
	})
}

// DeselectRow removes key from the selection
func (t *Table) DeselectRow(key string) {
	t.changeSelection(func() bool {
		i := slices.Index(t.selected, key)
		if i < 0 {
			return false
		}
		t.selected = slices.Delete(t.selected, i, i+1)
		return true
	})
}

// ToggleRowSelection flips the selection of key
func (t *Table) ToggleRowSelection(key string) {
	t.mu.Lock()
	selected := slices.Contains(t.selected, key)
	t.mu.Unlock()

	if selected {
		t.DeselectRow(key)
	} else {
		t.SelectRow(key)
	}
}

// ToggleSelectAll selects every row on the page, or clears the selection
// when every row is already selected. It needs multi select.
func (t *Table) ToggleSelectAll() {
	t.changeSelection(func() bool {
		if !t.cfg.MultiSelect {
			return false
		}
		all := make([]string, 0, len(t.state.Records))
		for _, r := range t.state.Records {
			all = append(all, t.keyOf(r))
		}
		if len(all) > 0 && len(t.selected) == len(all) {
			t.selected = nil
			return true
		}
		t.selected = all
		return true
	})
}

// SelectedKeys returns the selected record keys in selection order
func (t *Table) SelectedKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.selected)
}

// SelectedRecords returns copies of the selected records
func (t *Table) SelectedRecords() []model.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Record
	for _, key := range t.selected {
		if i := t.indexOfLocked(key); i >= 0 {
			out = append(out, t.state.Records[i].Clone())
		}
	}
	return out
}

func (t *Table) changeSelection(fn func() bool) {
	t.mu.Lock()
	if !t.cfg.Selecting || t.destroyed {
		t.mu.Unlock()
		return
	}
	changed := fn()
	keys := slices.Clone(t.selected)
	t.mu.Unlock()

	if !changed {
		return
	}
	t.render()
	t.events.Emit(SelectionChangedEvent{SelectedKeys: keys})
}

// SetColumnVisibility shows or hides a column. A sorted column cannot be
// hidden and fixed columns never change. The settings are persisted.
func (t *Table) SetColumnVisibility(ctx context.Context, field string, visible bool) error {
	v := types.VisibilityVisible
	if !visible {
		v = types.VisibilityHidden

		t.mu.Lock()
		_, sorted := t.state.Sorting.Direction(field)
		t.mu.Unlock()
		if sorted {
			return goerr.Wrap(model.ErrValidation, "a sorted column cannot be hidden", goerr.V(model.FieldNameKey, field))
		}
	}

	changed, err := t.schema.SetVisibility(field, v)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	t.saveColumnSettings(ctx)
	t.render()
	t.events.Emit(ColumnVisibilityEvent{Field: field, Visibility: v})
	return nil
}

func (t *Table) applyPreferences(ctx context.Context) {
	logger := logging.From(ctx)

	settings, err := t.prefs.ColumnSettings(ctx)
	if err != nil {
		logger.Warn("failed to read column settings", logging.ErrAttr(err))
	}
	for name, s := range settings {
		f, ok := t.schema.Field(name)
		if !ok || f.Visibility == types.VisibilityFixed {
			continue
		}
		if _, err := t.schema.SetVisibility(name, s.Visibility); err != nil {
			logger.Debug("ignored saved column setting", slog.String("field", name), logging.ErrAttr(err))
		}
	}

	st, err := t.prefs.TableState(ctx)
	if err != nil {
		logger.Warn("failed to read table state", logging.ErrAttr(err))
	}
	if st == nil {
		return
	}
	if slices.Contains(t.cfg.PageSizes, st.PageSize) {
		t.state.PageSize = st.PageSize
	}
	if t.cfg.Sorting {
		t.state.Sorting = slices.DeleteFunc(st.Sorting.Clone(), func(s model.SortSpec) bool {
			f, ok := t.schema.Field(s.Field)
			return !ok || !f.IsSortable() || !s.Direction.IsValid()
		})
	}
}

func (t *Table) saveState(ctx context.Context) {
	if !t.cfg.SaveUserPreferences || t.prefs == nil {
		return
	}
	t.mu.Lock()
	st := model.SavedTableState{Sorting: t.state.Sorting.Clone(), PageSize: t.state.PageSize}
	t.mu.Unlock()

	if err := t.prefs.SaveTableState(ctx, st); err != nil {
		logging.From(ctx).Warn("failed to save table state", logging.ErrAttr(err))
	}
}

func (t *Table) saveColumnSettings(ctx context.Context) {
	if !t.cfg.SaveUserPreferences || t.prefs == nil {
		return
	}
	settings := model.ColumnSettings{}
	for _, name := range t.schema.ColumnList() {
		f, _ := t.schema.Field(name)
		settings[name] = model.ColumnSetting{Visibility: t.schema.Visibility(name), Width: f.Width}
	}
	if err := t.prefs.SaveColumnSettings(ctx, settings); err != nil {
		logging.From(ctx).Warn("failed to save column settings", logging.ErrAttr(err))
	}
}

// ResetPreferences drops saved settings and restores the configured defaults
func (t *Table) ResetPreferences(ctx context.Context) error {
	if t.prefs != nil {
		if err := t.prefs.Reset(ctx); err != nil {
			return err
		}
	}
	for _, f := range t.schema.Fields() {
		_, _ = t.schema.SetVisibility(f.Name, f.Visibility.Normalize())
	}

	t.mu.Lock()
	t.state.Sorting = model.Sorting{}
	t.state.PageSize = t.cfg.PageSize
	t.state.CurrentPage = 1
	t.mu.Unlock()

	return t.Load(ctx, nil)
}

// AddRecord appends a record pushed by the server. A record whose key is
// already present updates that row instead.
func (t *Table) AddRecord(record model.Record) error {
	key := t.keyOf(record)
	if key == "" {
		return goerr.Wrap(model.ErrNoKeyField, "pushed record has no key")
	}

	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return goerr.Wrap(model.ErrTableDestroyed, "cannot add record")
	}
	if t.indexOfLocked(key) >= 0 {
		t.mu.Unlock()
		return t.UpdateRecord(record)
	}
	t.state.Records = append(t.state.Records, record.Clone())
	t.state.TotalCount++
	t.mu.Unlock()

	t.clearListCache()
	t.render()
	t.events.Emit(RecordAddedEvent{Record: record.Clone()})
	return nil
}

// UpdateRecord merges a record into the row with the same key
func (t *Table) UpdateRecord(record model.Record) error {
	key := t.keyOf(record)

	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return goerr.Wrap(model.ErrTableDestroyed, "cannot update record")
	}
	i := t.indexOfLocked(key)
	if key == "" || i < 0 {
		t.mu.Unlock()
		return goerr.Wrap(model.ErrRecordNotFound, "cannot update record", goerr.V(model.RecordKeyKey, key))
	}
	merged := t.state.Records[i].Merge(record)
	t.state.Records[i] = merged
	t.mu.Unlock()

	t.clearListCache()
	t.render()
	t.events.Emit(RecordUpdatedEvent{Record: merged.Clone()})
	return nil
}

// RemoveRecord removes the row with key
func (t *Table) RemoveRecord(key string) error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return goerr.Wrap(model.ErrTableDestroyed, "cannot remove record")
	}
	removed, ok := t.removeLocked(key)
	t.mu.Unlock()
	if !ok {
		return goerr.Wrap(model.ErrRecordNotFound, "cannot remove record", goerr.V(model.RecordKeyKey, key))
	}

	t.clearListCache()
	t.render()
	t.events.Emit(RecordDeletedEvent{Key: key, Record: removed})
	return nil
}

func (t *Table) removeLocked(key string) (model.Record, bool) {
	i := t.indexOfLocked(key)
	if i < 0 {
		return nil, false
	}
	removed := t.state.Records[i]
	t.state.Records = slices.Delete(t.state.Records, i, i+1)
	t.state.TotalCount = max(0, t.state.TotalCount-1)
	t.selected = slices.DeleteFunc(t.selected, func(k string) bool { return k == key })
	return removed, true
}

// Record returns a copy of the row with key
func (t *Table) Record(key string) (model.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOfLocked(key)
	if i < 0 {
		return nil, false
	}
	return t.state.Records[i].Clone(), true
}

// Destroy detaches the table. Late completions of in-flight work are ignored.
func (t *Table) Destroy() {
	t.mu.Lock()
	t.destroyed = true
	if t.searchTimer != nil {
		t.searchTimer.Stop()
		t.searchTimer = nil
	}
	form := t.form
	t.form = nil
	t.mu.Unlock()

	if form != nil {
		form.Close()
	}
}

// Destroyed reports whether Destroy was called
func (t *Table) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

func cloneRecords(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
