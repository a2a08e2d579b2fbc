package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/usecase"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	newRegistry := func(t *testing.T) (*usecase.Registry, *fakeTransport) {
		tr := newFakeTransport()
		tr.Reply(listURL, peoplePage)
		tr.Reply("/cities", citiesPayload)
		r := usecase.NewRegistry()
		t.Cleanup(r.Close)
		return r, tr
	}

	t.Run("create and lookup", func(t *testing.T) {
		r, tr := newRegistry(t)
		h, table, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		gt.Value(t, h.String()).NotEqual("")

		got, ok := r.Get(h)
		gt.Bool(t, ok).True()
		gt.Value(t, got).Equal(table)

		found, _, ok := r.Lookup("people")
		gt.Bool(t, ok).True()
		gt.Value(t, found).Equal(h)
		gt.Value(t, r.Len()).Equal(1)
	})

	t.Run("duplicate ID is rejected", func(t *testing.T) {
		r, tr := newRegistry(t)
		_, _, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		_, _, err = r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.Error(t, err).Is(model.ErrConfiguration)
		gt.Value(t, r.Len()).Equal(1)
	})

	t.Run("tables share the response cache", func(t *testing.T) {
		r, tr := newRegistry(t)
		first := peopleConfig()
		second := peopleConfig()
		second.ID = "people-copy"

		_, a, err := r.Create(ctx, first, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		_, b, err := r.Create(ctx, second, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		loadAndSettle(t, a)
		loadAndSettle(t, b)
		gt.Array(t, tr.Calls(listURL)).Length(1)
		gt.Value(t, b.GetState().TotalCount).Equal(3)
	})

	t.Run("children die with their parent", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)

		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		child, childTable, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, childTable)

		grandCfg := peopleConfig()
		grandCfg.ID = ""
		grand, grandTable, err := r.CreateChild(ctx, child, "2", grandCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		p, ok := r.Parent(child)
		gt.Bool(t, ok).True()
		gt.Value(t, p).Equal(parent)
		_, ok = r.Parent(parent)
		gt.Bool(t, ok).False()
		gt.Value(t, r.Children(parent)).Equal([]usecase.Handle{child})
		gt.Value(t, r.Children(child)).Equal([]usecase.Handle{grand})

		r.Destroy(parent)
		gt.Value(t, r.Len()).Equal(0)
		gt.Bool(t, parentTable.Destroyed()).True()
		gt.Bool(t, childTable.Destroyed()).True()
		gt.Bool(t, grandTable.Destroyed()).True()
		gt.Error(t, childTable.Load(ctx, nil)).Is(model.ErrTableDestroyed)

		_, _, ok = r.Lookup("people-child")
		gt.Bool(t, ok).False()
	})

	t.Run("child needs a shown parent row", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)

		_, _, err = r.CreateChild(ctx, parent, "", peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.Error(t, err).Is(model.ErrConfiguration)

		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		_, _, err = r.CreateChild(ctx, parent, "99", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.Error(t, err).Is(model.ErrRecordNotFound)
		gt.Value(t, r.Len()).Equal(1)
	})

	t.Run("reopening a row replaces its child", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)

		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		first, firstTable, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		other := peopleConfig()
		other.ID = "people-other"
		sibling, siblingTable, err := r.CreateChild(ctx, parent, "2", other, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		second, secondTable, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		gt.Value(t, second).NotEqual(first)
		gt.Bool(t, firstTable.Destroyed()).True()
		gt.Bool(t, secondTable.Destroyed()).False()
		gt.Bool(t, siblingTable.Destroyed()).False()

		_, ok := r.Get(first)
		gt.Bool(t, ok).False()
		h, ok := r.ChildOf(parent, "1")
		gt.Bool(t, ok).True()
		gt.Value(t, h).Equal(second)
		gt.Value(t, r.Children(parent)).Equal([]usecase.Handle{sibling, second})

		found, _, ok := r.Lookup("people-child")
		gt.Bool(t, ok).True()
		gt.Value(t, found).Equal(second)
	})

	t.Run("removing the parent row destroys its child", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)

		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		_, childTable, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		other := peopleConfig()
		other.ID = "people-other"
		sibling, siblingTable, err := r.CreateChild(ctx, parent, "2", other, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		gt.NoError(t, parentTable.RemoveRecord("1")).Required()
		gt.Bool(t, childTable.Destroyed()).True()
		gt.Bool(t, siblingTable.Destroyed()).False()
		_, ok := r.ChildOf(parent, "1")
		gt.Bool(t, ok).False()
		gt.Value(t, r.Children(parent)).Equal([]usecase.Handle{sibling})
		gt.Value(t, r.Len()).Equal(2)
	})

	t.Run("reloading the parent destroys row children", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)

		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		_, childTable, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		other := peopleConfig()
		other.ID = "people-other"
		_, siblingTable, err := r.CreateChild(ctx, parent, "2", other, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		gt.NoError(t, parentTable.Reload(ctx)).Required()
		parentTable.WaitBackground()
		gt.Bool(t, childTable.Destroyed()).True()
		gt.Bool(t, siblingTable.Destroyed()).True()
		gt.Array(t, r.Children(parent)).Length(0)
		gt.Value(t, r.Len()).Equal(1)
		gt.Bool(t, parentTable.Destroyed()).False()
	})

	t.Run("destroying a child detaches it from the parent", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, parentTable, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, parentTable)
		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		child, _, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		r.Destroy(child)
		gt.Array(t, r.Children(parent)).Length(0)
		_, ok := r.ChildOf(parent, "1")
		gt.Bool(t, ok).False()
		gt.Value(t, r.Len()).Equal(1)

		_, _, err = r.CreateChild(ctx, child, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("close destroys everything", func(t *testing.T) {
		r, tr := newRegistry(t)
		parent, table, err := r.Create(ctx, peopleConfig(), peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()
		loadAndSettle(t, table)
		childCfg := peopleConfig()
		childCfg.ID = "people-child"
		_, child, err := r.CreateChild(ctx, parent, "1", childCfg, peopleSchema(t), usecase.WithTransport(tr))
		gt.NoError(t, err).Required()

		r.Close()
		gt.Value(t, r.Len()).Equal(0)
		gt.Bool(t, table.Destroyed()).True()
		gt.Bool(t, child.Destroyed()).True()
	})
}
