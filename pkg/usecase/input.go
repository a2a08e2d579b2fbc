package usecase

import (
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// Input is one live form input. Kinds form a closed set; each kind has one
// constructor in inputFactories.
type Input interface {
	Kind() types.FieldKind
	Name() string
	// Value is the current value: a string, or []string for multi selects
	Value() any
	Set(v any) error
	// Extract returns what the input contributes to the submitted data
	Extract() []string
}

// OptionInput is an input whose values come from resolved options
type OptionInput interface {
	Input
	SetOptions(opts model.ResolvedOptions)
	Options() model.ResolvedOptions
}

type inputFactory func(field model.FieldDescriptor) Input

var inputFactories = map[types.FieldKind]inputFactory{
	types.FieldKindText:        newScalarInput,
	types.FieldKindTextarea:    newScalarInput,
	types.FieldKindPassword:    newScalarInput,
	types.FieldKindEmail:       newScalarInput,
	types.FieldKindDate:        newScalarInput,
	types.FieldKindDateTime:    newScalarInput,
	types.FieldKindHidden:      newScalarInput,
	types.FieldKindFile:        newScalarInput,
	types.FieldKindNumber:      newNumberInput,
	types.FieldKindCheckbox:    newCheckboxInput,
	types.FieldKindSelect:      newChoiceInput,
	types.FieldKindRadio:       newChoiceInput,
	types.FieldKindDatalist:    newChoiceInput,
	types.FieldKindMultiSelect: newMultiChoiceInput,
}

// NewInput builds the input of field for forms
func NewInput(field model.FieldDescriptor) (Input, error) {
	kind := field.FormKind()
	factory, ok := inputFactories[kind]
	if !ok {
		return nil, goerr.Wrap(model.ErrConfiguration, "no input for field kind",
			goerr.V(model.FieldNameKey, field.Name), goerr.V("kind", kind))
	}
	return factory(field), nil
}

// scalarInput holds a single free text value
type scalarInput struct {
	kind  types.FieldKind
	name  string
	value string
}

func newScalarInput(field model.FieldDescriptor) Input {
	return &scalarInput{kind: field.FormKind(), name: field.Name}
}

func (x *scalarInput) Kind() types.FieldKind { return x.kind }
func (x *scalarInput) Name() string          { return x.name }
func (x *scalarInput) Value() any            { return x.value }
func (x *scalarInput) Extract() []string     { return []string{x.value} }

func (x *scalarInput) Set(v any) error {
	x.value = model.ValueString(v)
	return nil
}

// numberInput accepts anything but Validate rejects non numeric text
type numberInput struct {
	scalarInput
}

func newNumberInput(field model.FieldDescriptor) Input {
	return &numberInput{scalarInput{kind: types.FieldKindNumber, name: field.Name}}
}

func (x *numberInput) numeric() bool {
	if x.value == "" {
		return true
	}
	_, err := strconv.ParseFloat(x.value, 64)
	return err == nil
}

// checkboxInput is on or off. It submits "1" or "0".
type checkboxInput struct {
	name    string
	checked bool
}

func newCheckboxInput(field model.FieldDescriptor) Input {
	return &checkboxInput{name: field.Name}
}

func (x *checkboxInput) Kind() types.FieldKind { return types.FieldKindCheckbox }
func (x *checkboxInput) Name() string          { return x.name }

func (x *checkboxInput) Value() any {
	if x.checked {
		return "1"
	}
	return "0"
}

func (x *checkboxInput) Extract() []string {
	return []string{x.Value().(string)}
}

func (x *checkboxInput) Set(v any) error {
	switch b := v.(type) {
	case bool:
		x.checked = b
	default:
		s := strings.ToLower(model.ValueString(v))
		x.checked = s == "1" || s == "true" || s == "on" || s == "yes"
	}
	return nil
}

// choiceInput selects one value among options (select, radio, datalist).
// A datalist also accepts values outside its options.
type choiceInput struct {
	kind    types.FieldKind
	name    string
	value   string
	options model.ResolvedOptions
}

func newChoiceInput(field model.FieldDescriptor) Input {
	return &choiceInput{kind: field.FormKind(), name: field.Name}
}

func (x *choiceInput) Kind() types.FieldKind { return x.kind }
func (x *choiceInput) Name() string          { return x.name }
func (x *choiceInput) Value() any            { return x.value }
func (x *choiceInput) Extract() []string     { return []string{x.value} }

func (x *choiceInput) Set(v any) error {
	x.value = model.ValueString(v)
	return nil
}

func (x *choiceInput) Options() model.ResolvedOptions {
	return x.options.Clone()
}

// SetOptions replaces the options. A value no longer offered is cleared;
// an empty list keeps the value.
func (x *choiceInput) SetOptions(opts model.ResolvedOptions) {
	x.options = opts.Clone()
	if x.kind != types.FieldKindDatalist && len(x.options) > 0 && x.value != "" && !x.options.Contains(x.value) {
		x.value = ""
	}
}

// valid reports option membership. Without options there is nothing to check against.
func (x *choiceInput) valid() bool {
	return x.kind == types.FieldKindDatalist || x.value == "" || len(x.options) == 0 || x.options.Contains(x.value)
}

// multiChoiceInput selects any number of values. It submits as "name[]".
type multiChoiceInput struct {
	name    string
	values  []string
	options model.ResolvedOptions
}

func newMultiChoiceInput(field model.FieldDescriptor) Input {
	return &multiChoiceInput{name: field.Name}
}

func (x *multiChoiceInput) Kind() types.FieldKind { return types.FieldKindMultiSelect }
func (x *multiChoiceInput) Name() string          { return x.name }
func (x *multiChoiceInput) Value() any            { return slices.Clone(x.values) }
func (x *multiChoiceInput) Extract() []string     { return slices.Clone(x.values) }

func (x *multiChoiceInput) Set(v any) error {
	switch list := v.(type) {
	case nil:
		x.values = nil
	case []string:
		x.values = slices.Clone(list)
	case []any:
		x.values = make([]string, 0, len(list))
		for _, item := range list {
			x.values = append(x.values, model.ValueString(item))
		}
	default:
		s := model.ValueString(v)
		x.values = nil
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				x.values = append(x.values, part)
			}
		}
	}
	return nil
}

func (x *multiChoiceInput) Options() model.ResolvedOptions {
	return x.options.Clone()
}

// SetOptions replaces the options and drops selected values no longer offered
func (x *multiChoiceInput) SetOptions(opts model.ResolvedOptions) {
	x.options = opts.Clone()
	if len(x.options) == 0 {
		return
	}
	x.values = slices.DeleteFunc(x.values, func(v string) bool {
		return !x.options.Contains(v)
	})
}

func (x *multiChoiceInput) valid() bool {
	if len(x.options) == 0 {
		return true
	}
	for _, v := range x.values {
		if !x.options.Contains(v) {
			return false
		}
	}
	return true
}

// isEmpty reports whether in carries no value, for required checks
func isEmpty(in Input) bool {
	for _, v := range in.Extract() {
		if v != "" {
			return false
		}
	}
	return true
}
