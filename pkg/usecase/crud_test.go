package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/usecase"
)

func newLoadedPeopleTable(t *testing.T, cfg model.TableConfig) (*usecase.Table, *fakeView, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	tr.Reply(listURL, peoplePage)
	tr.Reply("/cities", citiesPayload)
	table, view := newPeopleTable(t, cfg, tr)
	loadAndSettle(t, table)
	return table, view, tr
}

func TestTable_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("created record is appended and the form closes", func(t *testing.T) {
		table, view, tr := newLoadedPeopleTable(t, peopleConfig())
		tr.Reply(createURL, `{"Result":"OK","Record":{"id":4,"name":"Dan","age":40},"Message":"saved"}`)

		var closed []types.FormKind
		usecase.Subscribe(table.Events(), func(e usecase.FormClosedEvent) { closed = append(closed, e.FormKind) })
		var added []model.Record
		usecase.Subscribe(table.Events(), func(e usecase.RecordAddedEvent) { added = append(added, e.Record) })

		form, err := table.OpenCreateForm(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, form.Fields()).Equal([]string{"name", "age", "active", "country", "city"})
		gt.Array(t, form.Options("city")).Length(2)

		gt.NoError(t, form.SetValue(ctx, "name", "Dan")).Required()
		gt.NoError(t, form.SetValue(ctx, "age", 40)).Required()

		created, err := table.Create(ctx, form)
		gt.NoError(t, err).Required()
		gt.Value(t, created.String("id")).Equal("4")

		calls := tr.Calls(createURL)
		gt.Array(t, calls).Length(1)
		gt.Value(t, calls[0].Params["name"]).Equal(any("Dan"))
		gt.Value(t, calls[0].Params["age"]).Equal(any("40"))
		gt.Value(t, calls[0].Params["active"]).Equal(any("0"))

		gt.Value(t, keysOf(table)).Equal([]string{"1", "2", "3", "4"})
		gt.Value(t, table.GetState().TotalCount).Equal(4)
		gt.Bool(t, form.Closed()).True()
		_, open := table.Form()
		gt.Bool(t, open).False()
		gt.Value(t, view.Infos()).Equal([]string{"saved"})
		gt.Value(t, closed).Equal([]types.FormKind{types.FormCreate})
		gt.Array(t, added).Length(1)

		// the list cache was dropped, so the next load goes to the server
		gt.NoError(t, table.Load(ctx, nil)).Required()
		gt.Array(t, tr.Calls(listURL)).Length(2)
	})

	t.Run("invalid form makes no request", func(t *testing.T) {
		table, _, tr := newLoadedPeopleTable(t, peopleConfig())

		form, err := table.OpenCreateForm(ctx)
		gt.NoError(t, err).Required()
		gt.NoError(t, form.SetValue(ctx, "age", "old")).Required()

		_, err = table.Create(ctx, form)
		gt.Error(t, err).Is(model.ErrValidation)
		gt.Array(t, tr.Calls(createURL)).Length(0)
		gt.Bool(t, form.Closed()).False()
	})

	t.Run("failure envelope keeps the form and rows", func(t *testing.T) {
		table, view, tr := newLoadedPeopleTable(t, peopleConfig())
		tr.Reply(createURL, `{"Result":"ERROR","Message":"duplicate name"}`)

		form, err := table.OpenCreateForm(ctx)
		gt.NoError(t, err).Required()
		gt.NoError(t, form.SetValue(ctx, "name", "Alice")).Required()

		_, err = table.Create(ctx, form)
		gt.Error(t, err).Is(model.ErrEnvelope)
		gt.Value(t, view.Errors()).Equal([]string{"duplicate name"})
		gt.Array(t, table.GetState().Records).Length(3)
		gt.Bool(t, form.Closed()).False()
	})

	t.Run("func action without a record uses the form data", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.Actions.Create = model.RecordAction{Func: func(ctx context.Context, data model.Params) (*model.RecordResponse, error) {
			return model.NewRecordResponse(nil), nil
		}}
		table, _, _ := newLoadedPeopleTable(t, cfg)

		form, err := table.OpenCreateForm(ctx)
		gt.NoError(t, err).Required()
		gt.NoError(t, form.SetValue(ctx, "name", "Eve")).Required()

		created, err := table.Create(ctx, form)
		gt.NoError(t, err).Required()
		gt.Value(t, created.String("name")).Equal("Eve")
		gt.Array(t, table.GetState().Records).Length(4)
	})

	t.Run("closed form and unset action", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.Actions.Create = model.RecordAction{}
		table, _, _ := newLoadedPeopleTable(t, cfg)

		_, err := table.OpenCreateForm(ctx)
		gt.Error(t, err).Is(model.ErrNoAction)

		other, _, _ := newLoadedPeopleTable(t, peopleConfig())
		form, err := other.OpenCreateForm(ctx)
		gt.NoError(t, err).Required()
		other.CloseForm()
		_, err = other.Create(ctx, form)
		gt.Error(t, err).Is(model.ErrFormClosed)
	})
}

func TestTable_Update(t *testing.T) {
	ctx := context.Background()
	table, view, tr := newLoadedPeopleTable(t, peopleConfig())
	tr.Reply(updateURL, `{"Result":"OK"}`)

	form, err := table.OpenEditForm(ctx, "2")
	gt.NoError(t, err).Required()
	gt.Value(t, form.Fields()).Equal([]string{"id", "name", "age", "active", "country", "city"})

	in, ok := form.Input("id")
	gt.Bool(t, ok).True()
	gt.Value(t, in.Kind()).Equal(types.FieldKindHidden)
	gt.Value(t, form.Values()["city"]).Equal("par")

	gt.NoError(t, form.SetValue(ctx, "name", "Bobby")).Required()
	updated, err := table.Update(ctx, form)
	gt.NoError(t, err).Required()
	gt.Value(t, updated.String("name")).Equal("Bobby")

	calls := tr.Calls(updateURL)
	gt.Array(t, calls).Length(1)
	gt.Value(t, calls[0].Params["id"]).Equal(any("2"))

	r, ok := table.Record("2")
	gt.Bool(t, ok).True()
	gt.Value(t, r.String("name")).Equal("Bobby")
	gt.Value(t, keysOf(table)).Equal([]string{"1", "2", "3"})
	gt.Array(t, view.Infos()).Length(0)

	_, err = table.OpenEditForm(ctx, "99")
	gt.Error(t, err).Is(model.ErrRecordNotFound)

	create, err := table.OpenCreateForm(ctx)
	gt.NoError(t, err).Required()
	_, err = table.Update(ctx, create)
	gt.Error(t, err).Is(model.ErrConfiguration)
}

func TestTable_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("failure keeps the row and shows the message", func(t *testing.T) {
		table, view, tr := newLoadedPeopleTable(t, peopleConfig())
		tr.Reply(deleteURL, `{"Result":"FAIL","Message":"locked"}`)

		err := table.Delete(ctx, "2")
		gt.Error(t, err).Is(model.ErrEnvelope)
		gt.Value(t, keysOf(table)).Equal([]string{"1", "2", "3"})
		gt.Array(t, view.Rows()).Length(3)
		gt.Value(t, view.Errors()).Equal([]string{"locked"})

		calls := tr.Calls(deleteURL)
		gt.Array(t, calls).Length(1)
		gt.Value(t, calls[0].Params).Equal(model.Params{"id": "2"})
	})

	t.Run("success removes the row", func(t *testing.T) {
		table, view, tr := newLoadedPeopleTable(t, peopleConfig())
		tr.Reply(deleteURL, `{"Result":"OK"}`)

		var deleted []string
		usecase.Subscribe(table.Events(), func(e usecase.RecordDeletedEvent) { deleted = append(deleted, e.Key) })

		gt.NoError(t, table.Delete(ctx, "2")).Required()
		gt.Value(t, keysOf(table)).Equal([]string{"1", "3"})
		gt.Array(t, view.Rows()).Length(2)
		gt.Value(t, table.GetState().TotalCount).Equal(2)
		gt.Value(t, deleted).Equal([]string{"2"})

		gt.Error(t, table.Delete(ctx, "2")).Is(model.ErrRecordNotFound)
	})

	t.Run("confirmation hook can cancel", func(t *testing.T) {
		cfg := peopleConfig()
		var asked model.Record
		cfg.DeleteConfirmation = func(dc *model.DeleteConfirmation) {
			asked = dc.Record
			gt.Value(t, dc.Message).Equal(model.DefaultMessages().DeleteConfirmation)
			dc.Cancel = true
			dc.CancelMessage = "Alice is protected"
		}
		table, view, tr := newLoadedPeopleTable(t, cfg)

		gt.Error(t, table.Delete(ctx, "1")).Is(model.ErrCancelled)
		gt.Value(t, asked.String("name")).Equal("Alice")
		gt.Array(t, tr.Calls(deleteURL)).Length(0)
		gt.Value(t, view.Errors()).Equal([]string{"Alice is protected"})
		gt.Array(t, table.GetState().Records).Length(3)
	})

	t.Run("unset delete action", func(t *testing.T) {
		cfg := peopleConfig()
		cfg.Actions.Delete = model.RecordAction{}
		table, _, _ := newLoadedPeopleTable(t, cfg)

		gt.Error(t, table.Delete(ctx, "1")).Is(model.ErrNoAction)
	})
}

func TestTable_BulkDelete(t *testing.T) {
	ctx := context.Background()
	table, view, tr := newLoadedPeopleTable(t, peopleConfig())
	tr.Handle(deleteURL, func(params model.Params) (string, error) {
		if params["id"] == "2" {
			return `{"Result":"FAIL","Message":"locked"}`, nil
		}
		return `{"Result":"OK"}`, nil
	})

	var events []usecase.BulkDeletedEvent
	usecase.Subscribe(table.Events(), func(e usecase.BulkDeletedEvent) { events = append(events, e) })

	deleted, failed, err := table.BulkDelete(ctx, []string{"1", "2", "3"})
	gt.Error(t, err).Is(model.ErrEnvelope)
	gt.Value(t, deleted).Equal([]string{"1", "3"})
	gt.Value(t, failed).Equal([]string{"2"})
	gt.Value(t, keysOf(table)).Equal([]string{"2"})
	gt.Value(t, view.Errors()).Equal([]string{"1 of 3 records could not be deleted"})
	gt.Array(t, events).Length(1)
	gt.Array(t, tr.Calls(deleteURL)).Length(3)

	t.Run("all deleted", func(t *testing.T) {
		tr.Reply(deleteURL, `{"Result":"OK"}`)
		deleted, failed, err := table.BulkDelete(ctx, []string{"2"})
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal([]string{"2"})
		gt.Array(t, failed).Length(0)
		gt.Array(t, table.GetState().Records).Length(0)
	})
}

func TestTable_Clone(t *testing.T) {
	ctx := context.Background()
	table, _, _ := newLoadedPeopleTable(t, peopleConfig())

	var created []types.FormKind
	usecase.Subscribe(table.Events(), func(e usecase.FormCreatedEvent) { created = append(created, e.FormKind) })

	form, err := table.Clone(ctx, "1")
	gt.NoError(t, err).Required()
	gt.Value(t, form.Kind()).Equal(types.FormCreate)
	gt.Value(t, form.Values()["name"]).Equal("Alice")
	gt.Value(t, form.Values()["active"]).Equal("1")
	_, hasKey := form.Record()["id"]
	gt.Bool(t, hasKey).False()
	gt.Value(t, created).Equal([]types.FormKind{types.FormCreate})

	// opening another form closes the clone
	other, err := table.OpenEditForm(ctx, "3")
	gt.NoError(t, err).Required()
	gt.Bool(t, form.Closed()).True()
	current, ok := table.Form()
	gt.Bool(t, ok).True()
	gt.Value(t, current).Equal(other)
}

func TestTable_LoadRecordForEdit(t *testing.T) {
	ctx := context.Background()
	table, _, tr := newLoadedPeopleTable(t, peopleConfig())
	tr.Reply("/people/get", `{"Result":"OK","Record":{"id":2,"name":"Bob","age":28}}`)

	form, err := table.LoadRecordForEdit(ctx, "2", "/people/get", model.Params{"full": "1"})
	gt.NoError(t, err).Required()
	gt.Value(t, form.Kind()).Equal(types.FormEdit)
	gt.Value(t, form.Values()["age"]).Equal("28")
	gt.Value(t, form.Values()["country"]).Equal("FR")

	calls := tr.Calls("/people/get")
	gt.Array(t, calls).Length(1)
	gt.Value(t, calls[0].Params).Equal(model.Params{"id": "2", "full": "1"})

	t.Run("failure envelope", func(t *testing.T) {
		tr.Reply("/people/get", `{"Result":"ERROR","Message":"gone"}`)
		_, err := table.LoadRecordForEdit(ctx, "2", "/people/get", nil)
		gt.Error(t, err).Is(model.ErrEnvelope)
	})
}
