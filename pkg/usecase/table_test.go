package usecase_test

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/repository/memory"
	"github.com/secmon-lab/gridcore/pkg/service/cache"
	"github.com/secmon-lab/gridcore/pkg/usecase"
)

func TestNewTable(t *testing.T) {
	t.Run("URL actions need a transport", func(t *testing.T) {
		_, err := usecase.NewTable(context.Background(), peopleConfig(), peopleSchema(t))
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("list action is required", func(t *testing.T) {
		_, err := usecase.NewTable(context.Background(), model.TableConfig{ID: "x"}, peopleSchema(t))
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("func actions work without a transport", func(t *testing.T) {
		cfg := model.TableConfig{
			ID: "people",
			Actions: model.Actions{List: model.ListAction{
				Func: func(ctx context.Context, params model.Params) (*model.ListResponse, error) {
					return model.NewListResponse([]model.Record{{"id": "1", "name": "A"}}, 0), nil
				},
			}},
		}
		table, err := usecase.NewTable(context.Background(), cfg, peopleSchema(t))
		gt.NoError(t, err).Required()
		gt.NoError(t, table.Load(context.Background(), nil)).Required()

		st := table.GetState()
		gt.Array(t, st.Records).Length(1)
		gt.Value(t, st.TotalCount).Equal(1)
	})
}

func TestTable_Load(t *testing.T) {
	t.Run("OK response populates state and rows", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, `{"Result":"OK","Records":[{"id":1,"name":"A"}],"TotalRecordCount":1}`)
		table, view := newPeopleTable(t, peopleConfig(), tr)
		gt.Array(t, view.Rows()).Length(0)

		var loaded []usecase.RecordsLoadedEvent
		usecase.Subscribe(table.Events(), func(e usecase.RecordsLoadedEvent) {
			loaded = append(loaded, e)
		})

		gt.NoError(t, table.Load(context.Background(), nil)).Required()

		st := table.GetState()
		gt.Array(t, st.Records).Length(1)
		gt.Value(t, st.TotalCount).Equal(1)
		gt.Bool(t, st.IsLoading).False()

		rows := view.Rows()
		gt.Array(t, rows).Length(1)
		gt.Value(t, rows[0].Key).Equal("1")
		gt.Value(t, rows[0].Texts["name"]).Equal("A")

		gt.Array(t, loaded).Length(1)
		gt.Value(t, loaded[0].TotalCount).Equal(1)

		calls := tr.Calls(listURL)
		gt.Array(t, calls).Length(1)
		gt.Value(t, calls[0].Method).Equal("POST")
		gt.Value(t, calls[0].Params[model.ParamStartIndex]).Equal(any(0))
		gt.Value(t, calls[0].Params[model.ParamPageSize]).Equal(any(10))
	})

	t.Run("failure envelope keeps rows and shows the message", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		table, view := newPeopleTable(t, peopleConfig(), tr)
		gt.NoError(t, table.Load(context.Background(), nil)).Required()

		tr.Reply(listURL, `{"Result":"ERROR","Message":"db down"}`)
		err := table.Reload(context.Background())
		gt.Error(t, err).Is(model.ErrEnvelope)

		gt.Value(t, keysOf(table)).Equal([]string{"1", "2", "3"})
		gt.Array(t, view.Rows()).Length(3)
		gt.Value(t, view.Errors()).Equal([]string{"db down"})
		gt.Bool(t, table.GetState().IsLoading).False()
	})

	t.Run("transport failure shows the communication error", func(t *testing.T) {
		tr := newFakeTransport()
		table, view := newPeopleTable(t, peopleConfig(), tr)

		err := table.Load(context.Background(), nil)
		gt.Error(t, err).Is(model.ErrTransport)
		gt.Value(t, view.Errors()).Equal([]string{model.DefaultMessages().ServerCommunicationError})
	})

	t.Run("load while loading makes one network call", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		tr := newFakeTransport()
		tr.Handle(listURL, func(model.Params) (string, error) {
			close(started)
			<-release
			return peoplePage, nil
		})
		table, _ := newPeopleTable(t, peopleConfig(), tr)

		var wg sync.WaitGroup
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			firstErr = table.Load(context.Background(), nil)
		}()

		<-started
		gt.Bool(t, table.GetState().IsLoading).True()
		gt.NoError(t, table.Load(context.Background(), nil))
		close(release)
		wg.Wait()

		gt.NoError(t, firstErr)
		gt.Array(t, tr.Calls(listURL)).Length(1)
		gt.Array(t, table.GetState().Records).Length(3)
	})

	t.Run("list responses are cached until reload", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		table, _ := newPeopleTable(t, peopleConfig(), tr)
		ctx := context.Background()

		loadAndSettle(t, table)
		loadAndSettle(t, table)
		gt.Array(t, tr.Calls(listURL)).Length(1)

		gt.NoError(t, table.Reload(ctx)).Required()
		gt.Array(t, tr.Calls(listURL)).Length(2)
	})

	for _, ttl := range []time.Duration{0, -1} {
		t.Run(fmt.Sprintf("TTL %s disables the list cache", ttl), func(t *testing.T) {
			tr := newFakeTransport()
			tr.Reply(listURL, peoplePage)
			cfg := peopleConfig()
			cfg.ListCacheTTL = model.Duration(ttl)
			table, _ := newPeopleTable(t, cfg, tr)

			loadAndSettle(t, table)
			loadAndSettle(t, table)
			gt.Array(t, tr.Calls(listURL)).Length(2)
		})
	}

	t.Run("cached list expires after the TTL", func(t *testing.T) {
		var mu sync.Mutex
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}

		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		cfg := peopleConfig()
		cfg.ListCacheTTL = model.Duration(time.Minute)
		table, _ := newPeopleTable(t, cfg, tr, usecase.WithCache(cache.New(cache.WithClock(clock))))

		loadAndSettle(t, table)
		advance(59 * time.Second)
		loadAndSettle(t, table)
		gt.Array(t, tr.Calls(listURL)).Length(1)

		advance(2 * time.Second)
		loadAndSettle(t, table)
		gt.Array(t, tr.Calls(listURL)).Length(2)
	})

	t.Run("destroyed table refuses to load", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		table, _ := newPeopleTable(t, peopleConfig(), tr)
		table.Destroy()

		gt.Error(t, table.Load(context.Background(), nil)).Is(model.ErrTableDestroyed)
		gt.Array(t, tr.Calls(listURL)).Length(0)
	})

	t.Run("loading indicator is hidden after the load", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Handle(listURL, func(model.Params) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return peoplePage, nil
		})
		cfg := peopleConfig()
		cfg.LoadingDelay = model.Duration(time.Millisecond)
		table, view := newPeopleTable(t, cfg, tr)

		gt.NoError(t, table.Load(context.Background(), nil)).Required()
		view.mu.Lock()
		defer view.mu.Unlock()
		gt.Value(t, view.loading).Equal(0)
	})
}

func TestTable_BuildLoadParams(t *testing.T) {
	t.Run("search queries survive a round trip", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		cfg := peopleConfig()
		cfg.ToolbarSearch = true
		cfg.SearchDebounce = time.Hour
		table, _ := newPeopleTable(t, cfg, tr)
		ctx := context.Background()

		gt.NoError(t, table.SetSearch(ctx, "name", "ali")).Required()
		gt.NoError(t, table.SetSearch(ctx, "country", " US ")).Required()
		gt.NoError(t, table.FlushSearch(ctx)).Required()

		want := map[string]string{"name": "ali", "country": "US"}
		params := table.BuildLoadParams()
		gt.Value(t, model.SearchQueriesFromParams(params)).Equal(want)
		gt.Value(t, params[model.ParamQueryField]).Equal(any([]string{"name", "country"}))

		values, err := url.ParseQuery(params.Values().Encode())
		gt.NoError(t, err).Required()
		gt.Value(t, model.SearchQueriesFromParams(values)).Equal(want)

		gt.Array(t, tr.Calls(listURL)).Length(1)
		gt.Value(t, table.GetState().SearchQueries).Equal(want)
	})

	t.Run("debounced search loads once", func(t *testing.T) {
		tr := newFakeTransport()
		loaded := make(chan struct{}, 3)
		tr.Handle(listURL, func(model.Params) (string, error) {
			loaded <- struct{}{}
			return peoplePage, nil
		})
		cfg := peopleConfig()
		cfg.ToolbarSearch = true
		cfg.SearchDebounce = 20 * time.Millisecond
		table, _ := newPeopleTable(t, cfg, tr)
		ctx := context.Background()

		for _, term := range []string{"a", "al", "ali"} {
			gt.NoError(t, table.SetSearch(ctx, "name", term)).Required()
		}
		<-loaded
		time.Sleep(50 * time.Millisecond)

		calls := tr.Calls(listURL)
		gt.Array(t, calls).Length(1)
		gt.Value(t, calls[0].Params[model.ParamQuery]).Equal(any([]string{"ali"}))
	})

	t.Run("empty term removes the query", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		cfg := peopleConfig()
		cfg.ToolbarSearch = true
		cfg.SearchDebounce = time.Hour
		table, _ := newPeopleTable(t, cfg, tr)
		ctx := context.Background()

		gt.NoError(t, table.SetSearch(ctx, "name", "ali")).Required()
		gt.NoError(t, table.SetSearch(ctx, "name", "")).Required()
		_, ok := table.BuildLoadParams()[model.ParamQuery]
		gt.Bool(t, ok).False()

		gt.Error(t, table.SetSearch(ctx, "nope", "x")).Is(model.ErrUnknownField)
	})

	t.Run("default sorting drops unsortable fields", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.DefaultSorting = "name DESC, city ASC"
		table, _ := newPeopleTable(t, cfg, newFakeTransport())

		gt.Value(t, table.BuildLoadParams()[model.ParamSorting]).Equal(any("name DESC"))
	})

	t.Run("paging and sorting params follow the config", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.Paging = false
		cfg.Sorting = false
		cfg.DefaultSorting = "name DESC"
		cfg.ListQueryParams = func() model.Params { return model.Params{"team": "blue"} }
		table, _ := newPeopleTable(t, cfg, newFakeTransport())

		gt.Value(t, table.BuildLoadParams()).Equal(model.Params{"team": "blue"})
	})
}

func TestTable_SortByColumn(t *testing.T) {
	newTable := func(t *testing.T, cfg model.TableConfig) (*usecase.Table, *fakeTransport) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		table, _ := newPeopleTable(t, cfg, tr)
		return table, tr
	}
	ctx := context.Background()

	t.Run("single sorting collapses to the clicked column", func(t *testing.T) {
		table, _ := newTable(t, peopleConfig())

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.NoError(t, table.SortByColumn(ctx, "age", false)).Required()
		gt.Value(t, table.GetState().Sorting).Equal(model.Sorting{{Field: "age", Direction: types.SortAsc}})
	})

	t.Run("clicks cycle ASC, DESC and unsorted", func(t *testing.T) {
		table, tr := newTable(t, peopleConfig())

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.Value(t, table.GetState().Sorting).Equal(model.Sorting{{Field: "name", Direction: types.SortAsc}})

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.Value(t, table.GetState().Sorting).Equal(model.Sorting{{Field: "name", Direction: types.SortDesc}})
		calls := tr.Calls(listURL)
		gt.Value(t, calls[len(calls)-1].Params[model.ParamSorting]).Equal(any("name DESC"))

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.Array(t, table.GetState().Sorting).Length(0)
	})

	t.Run("multi sorting adds columns with the modifier", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.MultiSorting = true
		table, tr := newTable(t, cfg)

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.NoError(t, table.SortByColumn(ctx, "age", true)).Required()
		gt.NoError(t, table.SortByColumn(ctx, "age", true)).Required()
		gt.Value(t, table.GetState().Sorting).Equal(model.Sorting{
			{Field: "name", Direction: types.SortAsc},
			{Field: "age", Direction: types.SortDesc},
		})
		calls := tr.Calls(listURL)
		gt.Value(t, calls[len(calls)-1].Params[model.ParamSorting]).Equal(any("name ASC, age DESC"))
		gt.Value(t, table.SortingInfo()).Equal("Sorting applied: Name (Ascending), age (Descending)")

		gt.NoError(t, table.SortByColumn(ctx, "country", false)).Required()
		gt.Value(t, table.GetState().Sorting).Equal(model.Sorting{{Field: "country", Direction: types.SortAsc}})
	})

	t.Run("multi sorting without the modifier requirement", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.MultiSorting = true
		cfg.MultiSortingCtrlKey = model.Bool(false)
		table, _ := newTable(t, cfg)

		gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
		gt.NoError(t, table.SortByColumn(ctx, "age", false)).Required()
		gt.Array(t, table.GetState().Sorting).Length(2)
	})

	t.Run("unsortable and unknown columns", func(t *testing.T) {
		table, tr := newTable(t, peopleConfig())

		gt.NoError(t, table.SortByColumn(ctx, "city", false)).Required()
		gt.Array(t, table.GetState().Sorting).Length(0)
		gt.Array(t, tr.Calls(listURL)).Length(0)
		gt.Value(t, table.SortingInfo()).Equal("No sorting applied")

		gt.Error(t, table.SortByColumn(ctx, "nope", false)).Is(model.ErrUnknownField)
	})
}

func TestTable_Paging(t *testing.T) {
	tr := newFakeTransport()
	tr.Handle(listURL, func(params model.Params) (string, error) {
		start, _ := params[model.ParamStartIndex].(int)
		size, _ := params[model.ParamPageSize].(int)
		var records []string
		for i := start; i < min(start+size, 45); i++ {
			records = append(records, fmt.Sprintf(`{"id":%d,"name":"p%d"}`, i+1, i+1))
		}
		return `{"Result":"OK","TotalRecordCount":45,"Records":[` + strings.Join(records, ",") + `]}`, nil
	})
	table, view := newPeopleTable(t, peopleConfig(), tr)
	ctx := context.Background()
	loadAndSettle(t, table)

	t.Run("page is clamped to the last page", func(t *testing.T) {
		gt.NoError(t, table.ChangePage(ctx, 999)).Required()
		st := table.GetState()
		gt.Value(t, st.CurrentPage).Equal(5)
		gt.Array(t, st.Records).Length(5)

		calls := tr.Calls(listURL)
		gt.Value(t, calls[len(calls)-1].Params[model.ParamStartIndex]).Equal(any(40))
		gt.Value(t, table.PagingText()).Equal("Showing 41-45 of 45")
		gt.Value(t, table.PageNumbers()).Equal([]int{1, 2, 3, 4, 5})

		view.mu.Lock()
		gt.Value(t, view.paging.CurrentPage).Equal(5)
		view.mu.Unlock()
	})

	t.Run("same page does not reload", func(t *testing.T) {
		before := len(tr.Calls(listURL))
		gt.NoError(t, table.ChangePage(ctx, 5)).Required()
		gt.NoError(t, table.ChangePage(ctx, 6)).Required()
		gt.Array(t, tr.Calls(listURL)).Length(before)
	})

	t.Run("page below one is clamped", func(t *testing.T) {
		gt.NoError(t, table.ChangePage(ctx, -3)).Required()
		gt.Value(t, table.GetState().CurrentPage).Equal(1)
	})

	t.Run("page size change goes back to page 1", func(t *testing.T) {
		gt.NoError(t, table.ChangePage(ctx, 3)).Required()
		gt.NoError(t, table.ChangePageSize(ctx, 25)).Required()
		st := table.GetState()
		gt.Value(t, st.CurrentPage).Equal(1)
		gt.Value(t, st.PageSize).Equal(25)
		gt.Array(t, st.Records).Length(25)
		gt.Value(t, st.TotalPages()).Equal(2)

		gt.Error(t, table.ChangePageSize(ctx, 0)).Is(model.ErrValidation)
	})
}

func TestTable_TotalShrinksBelowCurrentPage(t *testing.T) {
	var mu sync.Mutex
	total := 45
	setTotal := func(n int) {
		mu.Lock()
		defer mu.Unlock()
		total = n
	}

	tr := newFakeTransport()
	tr.Handle(listURL, func(params model.Params) (string, error) {
		mu.Lock()
		n := total
		mu.Unlock()
		start, _ := params[model.ParamStartIndex].(int)
		size, _ := params[model.ParamPageSize].(int)
		var records []string
		for i := start; i < min(start+size, n); i++ {
			records = append(records, fmt.Sprintf(`{"id":%d,"name":"p%d"}`, i+1, i+1))
		}
		return fmt.Sprintf(`{"Result":"OK","TotalRecordCount":%d,"Records":[%s]}`, n, strings.Join(records, ",")), nil
	})
	cfg := peopleConfig()
	cfg.ListCacheTTL = model.Duration(0)
	table, view := newPeopleTable(t, cfg, tr)
	ctx := context.Background()

	loadAndSettle(t, table)
	gt.NoError(t, table.ChangePage(ctx, 5)).Required()
	gt.Array(t, table.GetState().Records).Length(5)

	setTotal(40)
	before := len(tr.Calls(listURL))
	gt.NoError(t, table.Load(ctx, nil)).Required()

	st := table.GetState()
	gt.Value(t, st.CurrentPage).Equal(4)
	gt.Value(t, st.TotalCount).Equal(40)
	gt.Array(t, st.Records).Length(10)
	gt.Value(t, st.Records[0].String("id")).Equal("31")
	gt.Value(t, table.PagingText()).Equal("Showing 31-40 of 40")

	calls := tr.Calls(listURL)
	gt.Array(t, calls).Length(before + 2)
	gt.Value(t, calls[len(calls)-1].Params[model.ParamStartIndex]).Equal(any(30))

	gt.Array(t, view.Rows()).Length(10)

	t.Run("empty result goes back to page 1", func(t *testing.T) {
		setTotal(0)
		gt.NoError(t, table.Load(ctx, nil)).Required()
		st := table.GetState()
		gt.Value(t, st.CurrentPage).Equal(1)
		gt.Array(t, st.Records).Length(0)
	})
}

func TestTable_Selection(t *testing.T) {
	t.Run("single select replaces the selection", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		cfg := peopleConfig()
		cfg.Selecting = true
		table, view := newPeopleTable(t, cfg, tr)
		loadAndSettle(t, table)

		var changes int
		usecase.Subscribe(table.Events(), func(usecase.SelectionChangedEvent) { changes++ })

		table.SelectRow("1")
		table.SelectRow("2")
		table.SelectRow("99")
		gt.Value(t, table.SelectedKeys()).Equal([]string{"2"})
		gt.Value(t, changes).Equal(2)

		rows := view.Rows()
		gt.Bool(t, rows[1].Selected).True()
		gt.Bool(t, rows[0].Selected).False()

		table.ToggleRowSelection("2")
		gt.Array(t, table.SelectedKeys()).Length(0)

		table.ToggleSelectAll()
		gt.Array(t, table.SelectedKeys()).Length(0)
	})

	t.Run("multi select and select all", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		cfg := peopleConfig()
		cfg.Selecting = true
		cfg.MultiSelect = true
		table, _ := newPeopleTable(t, cfg, tr)
		loadAndSettle(t, table)

		table.SelectRow("3")
		table.ToggleRowSelection("1")
		gt.Value(t, table.SelectedKeys()).Equal([]string{"3", "1"})
		gt.Array(t, table.SelectedRecords()).Length(2)

		table.ToggleSelectAll()
		gt.Value(t, table.SelectedKeys()).Equal([]string{"1", "2", "3"})
		table.ToggleSelectAll()
		gt.Array(t, table.SelectedKeys()).Length(0)

		table.SelectRow("2")
		gt.NoError(t, table.RemoveRecord("2")).Required()
		gt.Array(t, table.SelectedKeys()).Length(0)
	})

	t.Run("selection is ignored when disabled", func(t *testing.T) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		table, _ := newPeopleTable(t, peopleConfig(), tr)
		loadAndSettle(t, table)

		table.SelectRow("1")
		gt.Array(t, table.SelectedKeys()).Length(0)
	})
}

func TestTable_DisplayText(t *testing.T) {
	tr := newFakeTransport()
	tr.Reply(listURL, peoplePage)
	tr.Reply("/cities", citiesPayload)
	table, view := newPeopleTable(t, peopleConfig(), tr)
	ctx := context.Background()

	loadAndSettle(t, table)
	table.WaitBackground()

	rows := view.Rows()
	gt.Array(t, rows).Length(3)
	gt.Value(t, rows[0].Texts["active"]).Equal("Yes")
	gt.Value(t, rows[1].Texts["active"]).Equal("No")
	gt.Value(t, rows[0].Texts["country"]).Equal("United States")
	gt.Value(t, rows[1].Texts["city"]).Equal("Paris")
	gt.Value(t, rows[0].Texts["age"]).Equal("34")

	gt.Value(t, table.DisplayText(model.Record{"city": "zzz"}, "city")).Equal("zzz")
	gt.Value(t, table.DisplayText(model.Record{"country": []any{"FR", "US"}}, "country")).Equal("France, United States")

	// column options are resolved once per table
	gt.NoError(t, table.Reload(ctx)).Required()
	table.WaitBackground()
	gt.Array(t, tr.Calls("/cities")).Length(1)
}

func TestTable_DisplayFunc(t *testing.T) {
	schema, err := model.NewSchema(
		model.FieldDescriptor{Name: "id", Key: true},
		model.FieldDescriptor{Name: "name", Display: func(r model.Record) string {
			return strings.ToUpper(r.String("name"))
		}},
	)
	gt.NoError(t, err).Required()
	cfg := model.TableConfig{ID: "upper", Actions: model.Actions{List: model.ListAction{
		Func: func(ctx context.Context, params model.Params) (*model.ListResponse, error) {
			return model.NewListResponse([]model.Record{{"id": "1", "name": "ann"}}, 1), nil
		},
	}}}
	table, err := usecase.NewTable(context.Background(), cfg, schema)
	gt.NoError(t, err).Required()
	gt.NoError(t, table.Load(context.Background(), nil)).Required()

	gt.Value(t, table.Rows()[0].Texts["name"]).Equal("ANN")
}

func TestTable_ColumnVisibility(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	tr := newFakeTransport()
	tr.Reply(listURL, peoplePage)
	cfg := peopleConfig()
	cfg.SaveUserPreferences = true

	table, _ := newPeopleTable(t, cfg, tr, usecase.WithPreferenceStore(repo.Preference()))
	loadAndSettle(t, table)

	var events []usecase.ColumnVisibilityEvent
	usecase.Subscribe(table.Events(), func(e usecase.ColumnVisibilityEvent) { events = append(events, e) })

	gt.NoError(t, table.SortByColumn(ctx, "name", false)).Required()
	gt.Error(t, table.SetColumnVisibility(ctx, "name", false)).Is(model.ErrValidation)

	gt.NoError(t, table.SetColumnVisibility(ctx, "age", false)).Required()
	gt.NoError(t, table.SetColumnVisibility(ctx, "age", false)).Required()
	gt.Array(t, events).Length(1)
	for _, c := range table.Columns() {
		gt.Value(t, c.Name).NotEqual("age")
	}
	gt.NoError(t, table.ChangePageSize(ctx, 25)).Required()

	t.Run("settings are restored by a new table", func(t *testing.T) {
		restored, _ := newPeopleTable(t, cfg, tr, usecase.WithPreferenceStore(repo.Preference()))
		st := restored.GetState()
		gt.Value(t, st.PageSize).Equal(25)
		gt.Value(t, st.Sorting).Equal(model.Sorting{{Field: "name", Direction: types.SortAsc}})
		gt.Value(t, restored.Schema().Visibility("age")).Equal(types.VisibilityHidden)
	})

	t.Run("reset restores the defaults", func(t *testing.T) {
		gt.NoError(t, table.ResetPreferences(ctx)).Required()
		gt.Value(t, table.Schema().Visibility("age")).Equal(types.VisibilityVisible)
		gt.Value(t, table.GetState().PageSize).Equal(10)
	})
}

func TestTable_RealtimePatches(t *testing.T) {
	tr := newFakeTransport()
	tr.Reply(listURL, peoplePage)
	table, view := newPeopleTable(t, peopleConfig(), tr)
	loadAndSettle(t, table)

	var kinds []types.EventKind
	for _, k := range []types.EventKind{types.EventRecordAdded, types.EventRecordUpdated, types.EventRecordDeleted} {
		table.Events().On(k, func(e usecase.Event) { kinds = append(kinds, e.Kind()) })
	}

	gt.NoError(t, table.AddRecord(model.Record{"id": "4", "name": "Dan"})).Required()
	gt.Value(t, keysOf(table)).Equal([]string{"1", "2", "3", "4"})
	gt.Value(t, table.GetState().TotalCount).Equal(4)

	gt.NoError(t, table.UpdateRecord(model.Record{"id": "2", "name": "Bobby"})).Required()
	r, ok := table.Record("2")
	gt.Bool(t, ok).True()
	gt.Value(t, r.String("name")).Equal("Bobby")
	gt.Value(t, r.String("country")).Equal("FR")

	gt.NoError(t, table.AddRecord(model.Record{"id": "4", "name": "Daniel"})).Required()
	gt.Array(t, table.GetState().Records).Length(4)

	gt.NoError(t, table.RemoveRecord("1")).Required()
	gt.Value(t, keysOf(table)).Equal([]string{"2", "3", "4"})
	gt.Array(t, view.Rows()).Length(3)

	gt.Error(t, table.RemoveRecord("1")).Is(model.ErrRecordNotFound)
	gt.Error(t, table.UpdateRecord(model.Record{"id": "9"})).Is(model.ErrRecordNotFound)

	gt.Value(t, kinds).Equal([]types.EventKind{
		types.EventRecordAdded,
		types.EventRecordUpdated,
		types.EventRecordUpdated,
		types.EventRecordDeleted,
	})
}
