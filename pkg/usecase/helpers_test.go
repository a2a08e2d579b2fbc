package usecase_test

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/usecase"
)

type transportCall struct {
	Method string
	URL    string
	Params model.Params
}

// fakeTransport answers requests from per URL handlers and records every call
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]func(params model.Params) (string, error)
	calls    []transportCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]func(model.Params) (string, error))}
}

func (f *fakeTransport) Handle(url string, fn func(params model.Params) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[url] = fn
}

func (f *fakeTransport) Reply(url, body string) {
	f.Handle(url, func(model.Params) (string, error) { return body, nil })
}

func (f *fakeTransport) Get(ctx context.Context, url string, params model.Params) (json.RawMessage, error) {
	return f.serve("GET", url, params)
}

func (f *fakeTransport) Post(ctx context.Context, url string, data model.Params) (json.RawMessage, error) {
	return f.serve("POST", url, data)
}

func (f *fakeTransport) serve(method, url string, params model.Params) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, transportCall{Method: method, URL: url, Params: params.Merge()})
	fn, ok := f.handlers[url]
	f.mu.Unlock()

	if !ok {
		return nil, goerr.Wrap(model.ErrTransport, "no handler", goerr.V(model.EndpointKey, url))
	}
	body, err := fn(params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (f *fakeTransport) Calls(url string) []transportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transportCall
	for _, c := range f.calls {
		if c.URL == url {
			out = append(out, c)
		}
	}
	return out
}

// fakeView keeps what the table rendered last
type fakeView struct {
	mu      sync.Mutex
	columns []model.Column
	rows    []model.Row
	paging  model.PagingInfo
	pages   []int
	sorting model.Sorting
	errors  []string
	infos   []string
	loading int
	renders int
}

func (v *fakeView) RenderRows(columns []model.Column, rows []model.Row) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.columns = columns
	v.rows = rows
	v.renders++
}

func (v *fakeView) RenderPaging(info model.PagingInfo, pages []int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paging = info
	v.pages = pages
}

func (v *fakeView) RenderSorting(sorting model.Sorting) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sorting = sorting
}

func (v *fakeView) ShowLoading(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading++
}

func (v *fakeView) HideLoading() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading--
}

func (v *fakeView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, msg)
}

func (v *fakeView) ShowInfo(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.infos = append(v.infos, msg)
}

func (v *fakeView) Rows() []model.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.rows)
}

func (v *fakeView) Errors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.errors)
}

func (v *fakeView) Infos() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.infos)
}

func (v *fakeView) Renders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renders
}

const (
	listURL   = "/people/list"
	createURL = "/people/create"
	updateURL = "/people/update"
	deleteURL = "/people/delete"
)

func peopleSchema(t *testing.T) *model.Schema {
	t.Helper()
	schema, err := model.NewSchema(
		model.FieldDescriptor{Name: "id", Key: true},
		model.FieldDescriptor{Name: "name", Title: "Name", Required: true},
		model.FieldDescriptor{Name: "age", Kind: types.FieldKindNumber},
		model.FieldDescriptor{Name: "active", Kind: types.FieldKindCheckbox, Values: map[string]string{"1": "Yes", "0": "No"}},
		model.FieldDescriptor{Name: "country", Options: model.StaticOptions{
			{Value: "US", DisplayText: "United States"},
			{Value: "FR", DisplayText: "France"},
		}},
		model.FieldDescriptor{Name: "city", Options: model.URLSource("/cities"), Sortable: model.Bool(false)},
	)
	gt.NoError(t, err).Required()
	return schema
}

func peopleConfig() model.TableConfig {
	return model.TableConfig{
		ID: "people",
		Actions: model.Actions{
			List:   model.ListAction{URL: listURL},
			Create: model.RecordAction{URL: createURL},
			Update: model.RecordAction{URL: updateURL},
			Delete: model.RecordAction{URL: deleteURL},
		},
		Paging:   true,
		Sorting:  true,
		PageSize: 10,
	}
}

const peoplePage = `{"Result":"OK","TotalRecordCount":3,"Records":[
	{"id":1,"name":"Alice","age":34,"active":1,"country":"US","city":"nyc"},
	{"id":2,"name":"Bob","age":27,"active":0,"country":"FR","city":"par"},
	{"id":3,"name":"Carol","age":41,"active":1,"country":"US","city":"nyc"}
]}`

const citiesPayload = `{"Options":[{"Value":"nyc","DisplayText":"New York"},{"Value":"par","DisplayText":"Paris"}]}`

func newPeopleTable(t *testing.T, cfg model.TableConfig, tr *fakeTransport, opts ...usecase.TableOption) (*usecase.Table, *fakeView) {
	t.Helper()
	view := &fakeView{}
	opts = append([]usecase.TableOption{usecase.WithView(view), usecase.WithTransport(tr)}, opts...)
	table, err := usecase.NewTable(context.Background(), cfg, peopleSchema(t), opts...)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		table.Destroy()
		table.WaitBackground()
	})
	return table, view
}

func keysOf(t *usecase.Table) []string {
	var out []string
	for _, r := range t.GetState().Records {
		out = append(out, r.String("id"))
	}
	return out
}

// loadAndSettle loads the table and waits for background option resolution
func loadAndSettle(t *testing.T, table *usecase.Table) {
	t.Helper()
	gt.NoError(t, table.Load(context.Background(), nil)).Required()
	table.WaitBackground()
}
