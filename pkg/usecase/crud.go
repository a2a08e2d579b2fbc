package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/utils/errutil"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

// OpenCreateForm builds an empty create form. A form that is still open is
// closed first.
func (t *Table) OpenCreateForm(ctx context.Context) (*FormHandle, error) {
	if !t.cfg.Actions.Create.IsSet() {
		return nil, goerr.Wrap(model.ErrNoAction, "create is not configured", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	return t.openForm(ctx, types.FormCreate, nil, "")
}

// OpenEditForm builds an edit form for the row with key
func (t *Table) OpenEditForm(ctx context.Context, key string) (*FormHandle, error) {
	if !t.cfg.Actions.Update.IsSet() {
		return nil, goerr.Wrap(model.ErrNoAction, "update is not configured", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	record, ok := t.Record(key)
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "cannot edit", goerr.V(model.RecordKeyKey, key))
	}
	return t.openForm(ctx, types.FormEdit, record, key)
}

// Clone opens a create form prefilled with the row of key, key field cleared
func (t *Table) Clone(ctx context.Context, key string) (*FormHandle, error) {
	if !t.cfg.Actions.Create.IsSet() {
		return nil, goerr.Wrap(model.ErrNoAction, "create is not configured", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	record, ok := t.Record(key)
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "cannot clone", goerr.V(model.RecordKeyKey, key))
	}
	delete(record, t.schema.KeyField())
	return t.openForm(ctx, types.FormCreate, record, "")
}

// LoadRecordForEdit fetches the record of key from url and opens an edit
// form for it. The fetched values are merged over the row, if it is shown.
func (t *Table) LoadRecordForEdit(ctx context.Context, key, url string, params model.Params) (*FormHandle, error) {
	if t.transport == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "loading a record needs a transport", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	keyField := t.schema.KeyField()
	if keyField == "" {
		return nil, goerr.Wrap(model.ErrNoKeyField, "cannot load record", goerr.V(model.TableIDKey, t.cfg.ID))
	}

	params = params.Merge(model.Params{keyField: key})
	var (
		raw []byte
		err error
	)
	if t.cfg.UsePost() {
		raw, err = t.transport.Post(ctx, url, params)
	} else {
		raw, err = t.transport.Get(ctx, url, params)
	}
	if err != nil {
		return nil, t.surfaceFailure(ctx, nil, goerr.Wrap(err, "failed to load record", goerr.V(model.RecordKeyKey, key)))
	}
	resp, err := model.DecodeRecordResponse(raw)
	if err != nil {
		return nil, t.surfaceFailure(ctx, resp, goerr.Wrap(err, "failed to load record", goerr.V(model.RecordKeyKey, key)))
	}

	record := resp.Record
	if row, ok := t.Record(key); ok {
		record = row.Merge(resp.Record)
	}
	return t.openForm(ctx, types.FormEdit, record, key)
}

func (t *Table) openForm(ctx context.Context, kind types.FormKind, record model.Record, key string) (*FormHandle, error) {
	if t.Destroyed() {
		return nil, goerr.Wrap(model.ErrTableDestroyed, "cannot open form", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	t.CloseForm()

	form, err := t.forms.Build(ctx, kind, record)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		form.Close()
		return nil, goerr.Wrap(model.ErrTableDestroyed, "cannot open form", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	t.form = form
	t.editingKey = key
	t.mu.Unlock()

	t.events.Emit(FormCreatedEvent{Form: form, FormKind: kind})
	return form, nil
}

// Form returns the open form, if any
func (t *Table) Form() (*FormHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.form, t.form != nil
}

// CloseForm closes the open form without submitting it
func (t *Table) CloseForm() {
	t.mu.Lock()
	form := t.form
	t.form = nil
	t.editingKey = ""
	t.mu.Unlock()

	if form == nil {
		return
	}
	form.Close()
	t.events.Emit(FormClosedEvent{FormKind: form.Kind()})
}

// Create submits a create form. Invalid input is rejected before any
// network call. On success the created record is appended to the rows and
// the form is closed; on failure the rows are left untouched.
func (t *Table) Create(ctx context.Context, form *FormHandle) (model.Record, error) {
	if err := t.checkSubmittable(form, types.FormCreate); err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	data := form.Data()
	resp, err := t.callRecordAction(ctx, t.cfg.Actions.Create, data)
	if err != nil {
		return nil, t.surfaceFailure(ctx, resp, goerr.Wrap(err, "failed to create record", goerr.V(model.TableIDKey, t.cfg.ID)))
	}

	record := resp.Record
	if record == nil {
		record = model.Record(data)
	}

	t.mu.Lock()
	if !t.destroyed {
		t.state.Records = append(t.state.Records, record.Clone())
		t.state.TotalCount++
	}
	t.mu.Unlock()

	t.finishSubmit(resp.Message)
	t.events.Emit(RecordAddedEvent{Record: record.Clone()})
	return record, nil
}

// Update submits an edit form and merges the saved record into its row
func (t *Table) Update(ctx context.Context, form *FormHandle) (model.Record, error) {
	if err := t.checkSubmittable(form, types.FormEdit); err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	key, err := t.schema.KeyOf(form.Record())
	if err != nil {
		return nil, goerr.Wrap(err, "cannot update", goerr.V(model.TableIDKey, t.cfg.ID))
	}

	data := form.Data()
	resp, err := t.callRecordAction(ctx, t.cfg.Actions.Update, data)
	if err != nil {
		return nil, t.surfaceFailure(ctx, resp, goerr.Wrap(err, "failed to update record", goerr.V(model.RecordKeyKey, key)))
	}

	patch := model.Record(data)
	if resp.Record != nil {
		patch = patch.Merge(resp.Record)
	}

	var merged model.Record
	t.mu.Lock()
	if i := t.indexOfLocked(key); i >= 0 && !t.destroyed {
		merged = t.state.Records[i].Merge(patch)
		t.state.Records[i] = merged
	} else {
		merged = form.Record().Merge(patch)
	}
	t.mu.Unlock()

	t.finishSubmit(resp.Message)
	t.events.Emit(RecordUpdatedEvent{Record: merged.Clone()})
	return merged, nil
}

func (t *Table) checkSubmittable(form *FormHandle, kind types.FormKind) error {
	if form == nil || form.Kind() != kind {
		return goerr.Wrap(model.ErrConfiguration, "form kind does not match the submission", goerr.V(model.FormKindKey, kind))
	}
	if form.Closed() {
		return goerr.Wrap(model.ErrFormClosed, "cannot submit", goerr.V(model.FormKindKey, kind))
	}
	if t.Destroyed() {
		return goerr.Wrap(model.ErrTableDestroyed, "cannot submit", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	action := t.cfg.Actions.Create
	if kind == types.FormEdit {
		action = t.cfg.Actions.Update
	}
	if !action.IsSet() {
		return goerr.Wrap(model.ErrNoAction, "submission is not configured", goerr.V(model.FormKindKey, kind))
	}
	return nil
}

func (t *Table) finishSubmit(message string) {
	t.clearListCache()
	t.CloseForm()
	t.render()
	if message != "" {
		t.view.ShowInfo(message)
	}
}

// Delete deletes the row with key. The DeleteConfirmation hook may cancel
// it, in which case ErrCancelled is returned. A failed delete keeps the row.
func (t *Table) Delete(ctx context.Context, key string) error {
	if !t.cfg.Actions.Delete.IsSet() {
		return goerr.Wrap(model.ErrNoAction, "delete is not configured", goerr.V(model.TableIDKey, t.cfg.ID))
	}
	record, ok := t.Record(key)
	if !ok {
		return goerr.Wrap(model.ErrRecordNotFound, "cannot delete", goerr.V(model.RecordKeyKey, key))
	}

	if t.cfg.DeleteConfirmation != nil {
		dc := &model.DeleteConfirmation{Record: record, Message: t.cfg.Messages.DeleteConfirmation}
		t.cfg.DeleteConfirmation(dc)
		if dc.Cancel {
			if dc.CancelMessage != "" {
				t.view.ShowError(dc.CancelMessage)
			}
			return goerr.Wrap(model.ErrCancelled, "delete cancelled", goerr.V(model.RecordKeyKey, key))
		}
	}

	resp, err := t.deleteRecord(ctx, key)
	if err != nil {
		return t.surfaceFailure(ctx, resp, goerr.Wrap(err, "failed to delete record", goerr.V(model.RecordKeyKey, key)))
	}
	if resp.Message != "" {
		t.view.ShowInfo(resp.Message)
	}
	return nil
}

// BulkDelete deletes keys one after another. Only successful deletions are
// removed from the rows; failures are reported together.
func (t *Table) BulkDelete(ctx context.Context, keys []string) ([]string, []string, error) {
	if !t.cfg.Actions.Delete.IsSet() {
		return nil, nil, goerr.Wrap(model.ErrNoAction, "delete is not configured", goerr.V(model.TableIDKey, t.cfg.ID))
	}

	var deleted, failed []string
	var errs []error
	for _, key := range keys {
		if _, err := t.deleteRecord(ctx, key); err != nil {
			logging.From(ctx).Warn("failed to delete record", slog.String("key", key), logging.ErrAttr(err))
			failed = append(failed, key)
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, key)
	}

	t.events.Emit(BulkDeletedEvent{Deleted: deleted, Failed: failed})
	if len(failed) == 0 {
		return deleted, nil, nil
	}

	t.view.ShowError(model.Format(t.cfg.Messages.CannotDeleteRecords, len(failed), len(keys)))
	err := goerr.Wrap(errors.Join(errs...), "some records could not be deleted",
		goerr.V("failed", failed), goerr.V(model.TableIDKey, t.cfg.ID))
	return deleted, failed, errutil.Handle(ctx, err, "bulk delete failed")
}

// deleteRecord calls the delete action and removes the row on success
func (t *Table) deleteRecord(ctx context.Context, key string) (*model.RecordResponse, error) {
	keyField := t.schema.KeyField()
	if keyField == "" {
		return nil, goerr.Wrap(model.ErrNoKeyField, "cannot delete", goerr.V(model.TableIDKey, t.cfg.ID))
	}

	resp, err := t.callRecordAction(ctx, t.cfg.Actions.Delete, model.Params{keyField: key})
	if err != nil {
		return resp, err
	}

	t.mu.Lock()
	removed, ok := t.removeLocked(key)
	t.mu.Unlock()

	t.clearListCache()
	if ok {
		t.render()
		t.events.Emit(RecordDeletedEvent{Key: key, Record: removed})
	}
	return resp, nil
}

// callRecordAction runs a create, update or delete action and checks the
// envelope. The response is returned with a failure envelope so that its
// message can be shown.
func (t *Table) callRecordAction(ctx context.Context, action model.RecordAction, data model.Params) (*model.RecordResponse, error) {
	if action.Func != nil {
		resp, err := action.Func(ctx, data)
		if err != nil {
			return nil, goerr.Wrap(err, "record function failed")
		}
		if resp == nil {
			return nil, goerr.Wrap(model.ErrEnvelope, "record function returned no response")
		}
		if err := resp.Err(); err != nil {
			return resp, err
		}
		return resp, nil
	}

	raw, err := t.transport.Post(ctx, action.URL, data)
	if err != nil {
		return nil, err
	}
	return model.DecodeRecordResponse(raw)
}

// surfaceFailure shows the server message of a failure envelope, or the
// communication error for anything else, then logs and returns err.
func (t *Table) surfaceFailure(ctx context.Context, resp *model.RecordResponse, err error) error {
	msg := t.cfg.Messages.ServerCommunicationError
	if errors.Is(err, model.ErrEnvelope) {
		msg = t.cfg.Messages.Error
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
	}
	t.view.ShowError(msg)
	return errutil.Handle(ctx, err, "record operation failed")
}
