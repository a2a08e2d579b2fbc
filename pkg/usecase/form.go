package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// FormAssembler builds create and edit forms from a schema
type FormAssembler struct {
	schema   *model.Schema
	resolver *OptionsResolver
}

// NewFormAssembler creates an assembler resolving options through resolver
func NewFormAssembler(schema *model.Schema, resolver *OptionsResolver) *FormAssembler {
	return &FormAssembler{schema: schema, resolver: resolver}
}

// Build creates a form of kind for record. Options of every field without
// dependencies are resolved before it returns; dependent fields are resolved
// by one dependency pass over the initial values, then again whenever one of
// their masters changes.
func (a *FormAssembler) Build(ctx context.Context, kind types.FormKind, record model.Record) (*FormHandle, error) {
	if !kind.IsValid() {
		return nil, goerr.Wrap(model.ErrConfiguration, "unknown form kind", goerr.V(model.FormKindKey, kind))
	}

	record = record.Clone()
	if record == nil {
		record = model.Record{}
	}
	fields := a.schema.Fields()
	a.resolver.Register(fields)

	initial := make(map[string]string, len(record))
	for k := range record {
		initial[k] = record.String(k)
	}

	independent := make(map[string]model.ResolvedOptions)
	var (
		eg errgroup.Group
		mu sync.Mutex
	)
	for _, f := range fields {
		if f.Options == nil || f.HasDependencies() || !f.IncludedIn(kind) {
			continue
		}
		eg.Go(func() error {
			opts := a.resolver.Resolve(ctx, f, &model.ProviderContext{
				DependedValues: initial,
				Record:         record,
				FormKind:       kind,
			})
			mu.Lock()
			independent[f.Name] = opts
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	graph, err := model.BuildDependencyGraph(fields)
	if err != nil {
		return nil, err
	}

	h := &FormHandle{
		kind:        kind,
		record:      record,
		graph:       graph,
		resolver:    a.resolver,
		resolutions: NewResolutions(),
		fields:      make(map[string]model.FieldDescriptor),
		inputs:      make(map[string]Input),
		listeners:   make(map[string][]func(ctx context.Context)),
	}

	for _, f := range fields {
		if !f.IncludedIn(kind) {
			continue
		}
		in, err := NewInput(f)
		if err != nil {
			return nil, err
		}
		if opts, ok := independent[f.Name]; ok {
			h.resolutions.Set(f.Name, opts)
			if oi, ok := in.(OptionInput); ok {
				oi.SetOptions(opts)
			}
		}
		if v, ok := record[f.Name]; ok {
			_ = in.Set(v)
		} else if kind == types.FormCreate && f.DefaultValue != nil {
			_ = in.Set(f.DefaultValue)
		}

		h.order = append(h.order, f.Name)
		h.fields[f.Name] = f
		h.inputs[f.Name] = in
	}

	for _, master := range graph.Masters() {
		if _, ok := h.inputs[master]; !ok {
			continue
		}
		h.listeners[master] = append(h.listeners[master], func(ctx context.Context) {
			h.runDependencies(ctx, master)
		})
	}

	h.runDependencies(ctx, "")

	return h, nil
}

// FormHandle is a live form. Inputs are only changed through SetValue so
// that dependency listeners fire.
type FormHandle struct {
	kind        types.FormKind
	record      model.Record
	graph       *model.DependencyGraph
	resolver    *OptionsResolver
	resolutions *Resolutions

	mu        sync.Mutex
	order     []string
	fields    map[string]model.FieldDescriptor
	inputs    map[string]Input
	listeners map[string][]func(ctx context.Context)
	closed    bool
}

// Kind returns create or edit
func (h *FormHandle) Kind() types.FormKind {
	return h.kind
}

// Record returns a copy of the record the form was built for
func (h *FormHandle) Record() model.Record {
	return h.record.Clone()
}

// Fields returns the names of the inputs, in schema order
func (h *FormHandle) Fields() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.order)
}

// Input returns the input of field
func (h *FormHandle) Input(field string) (Input, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	in, ok := h.inputs[field]
	return in, ok
}

// Graph returns the dependency graph built for this form
func (h *FormHandle) Graph() *model.DependencyGraph {
	return h.graph
}

// Options returns the options currently offered by field
func (h *FormHandle) Options(field string) model.ResolvedOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	if oi, ok := h.inputs[field].(OptionInput); ok {
		return oi.Options()
	}
	opts, _ := h.resolutions.Get(field)
	return opts
}

// Values returns the current value of every input as dependency context.
// Checkboxes read "1" or "0" and multi selects are comma joined.
func (h *FormHandle) Values() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.valuesLocked()
}

func (h *FormHandle) valuesLocked() map[string]string {
	out := make(map[string]string, len(h.inputs))
	for name, in := range h.inputs {
		out[name] = strings.Join(in.Extract(), ",")
	}
	return out
}

// OnChange registers fn to run after field changes through SetValue
func (h *FormHandle) OnChange(field string, fn func(ctx context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[field] = append(h.listeners[field], fn)
}

// SetValue changes an input and fires its change listeners. Dependents of
// the field are re-resolved before it returns.
func (h *FormHandle) SetValue(ctx context.Context, field string, v any) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return goerr.Wrap(model.ErrFormClosed, "cannot set value", goerr.V(model.FieldNameKey, field))
	}
	in, ok := h.inputs[field]
	if !ok {
		h.mu.Unlock()
		return goerr.Wrap(model.ErrUnknownField, "form has no such input", goerr.V(model.FieldNameKey, field))
	}
	if err := in.Set(v); err != nil {
		h.mu.Unlock()
		return goerr.Wrap(err, "failed to set value", goerr.V(model.FieldNameKey, field))
	}
	listeners := slices.Clone(h.listeners[field])
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}
	return nil
}

// runDependencies re-resolves the dependents of changed, or of every
// master when changed is empty. Dependents without an input are skipped.
func (h *FormHandle) runDependencies(ctx context.Context, changed string) {
	values := h.Values()

	var targets []model.FieldDescriptor
	h.mu.Lock()
	for _, name := range h.graph.Dependents() {
		if changed != "" && !slices.Contains(h.graph.DependsOn(name), changed) {
			continue
		}
		if _, ok := h.inputs[name]; !ok {
			continue
		}
		targets = append(targets, h.fields[name])
	}
	h.mu.Unlock()

	var eg errgroup.Group
	for _, f := range targets {
		eg.Go(func() error {
			h.resolveDependent(ctx, f, values)
			return nil
		})
	}
	_ = eg.Wait()
}

func (h *FormHandle) resolveDependent(ctx context.Context, f model.FieldDescriptor, values map[string]string) {
	masters := h.graph.DependsOn(f.Name)
	ticket := h.resolutions.Begin(f.Name, dependencySignature(masters, values))

	pc := &model.ProviderContext{
		DependedValues: values,
		Record:         h.record,
		FormKind:       h.kind,
		DependsOnField: f.DependsOn,
	}
	var opts model.ResolvedOptions
	if f.Cacheable {
		opts = h.resolver.Resolve(ctx, f, pc)
	} else {
		opts = h.resolver.ResolveFresh(ctx, f, pc)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	current := dependencySignature(masters, h.valuesLocked())
	if !h.resolutions.Commit(ticket, opts, current) {
		logging.From(ctx).Debug("discarded stale options",
			slog.String("field", f.Name),
			slog.String("computed_for", ticket.Signature),
			slog.String("current", current),
		)
		return
	}
	if oi, ok := h.inputs[f.Name].(OptionInput); ok {
		oi.SetOptions(opts)
	}
}

// Validate checks required fields, numeric inputs and option membership.
// It returns model.ErrValidation listing the offending fields.
func (h *FormHandle) Validate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var invalid []string
	for _, name := range h.order {
		in := h.inputs[name]
		f := h.fields[name]

		switch x := in.(type) {
		case *checkboxInput:
			if f.Required && !x.checked {
				invalid = append(invalid, name)
			}
			continue
		case *numberInput:
			if !x.numeric() {
				invalid = append(invalid, name)
				continue
			}
		case *choiceInput:
			if !x.valid() {
				invalid = append(invalid, name)
				continue
			}
		case *multiChoiceInput:
			if !x.valid() {
				invalid = append(invalid, name)
				continue
			}
		}

		if f.Required && isEmpty(in) {
			invalid = append(invalid, name)
		}
	}

	if len(invalid) > 0 {
		return goerr.Wrap(model.ErrValidation, "form has invalid fields", goerr.V("fields", invalid))
	}
	return nil
}

// Data returns the submitted values: one string per input, a list for
// multi selects.
func (h *FormHandle) Data() model.Params {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(model.Params, len(h.inputs))
	for _, name := range h.order {
		in := h.inputs[name]
		if in.Kind() == types.FieldKindMultiSelect {
			out[name] = in.Extract()
			continue
		}
		out[name] = strings.Join(in.Extract(), ",")
	}
	return out
}

// Close detaches the form. Resolutions that complete later are ignored.
func (h *FormHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// Closed reports whether Close was called
func (h *FormHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// FormDataFromValues flattens submitted form values into a record. Names
// ending in "[]" and names sent more than once become lists.
func FormDataFromValues(values url.Values) model.Record {
	out := make(model.Record, len(values))
	for key, vs := range values {
		name, isList := strings.CutSuffix(key, "[]")
		switch {
		case isList || len(vs) > 1:
			list := make([]string, 0, len(vs))
			if prev, ok := out[name].([]string); ok {
				list = append(list, prev...)
			}
			out[name] = append(list, vs...)
		case len(vs) == 1:
			out[name] = vs[0]
		}
	}
	return out
}
