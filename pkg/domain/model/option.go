package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Option is one selectable value of a field
type Option struct {
	Value       any            `json:"Value"`
	DisplayText string         `json:"DisplayText"`
	Data        map[string]any `json:"Data,omitempty"`
}

// ResolvedOptions is the ordered result of resolving a field's option source.
// A resolution always replaces the previous one for the same field.
type ResolvedOptions []Option

// Find returns the option whose value matches v. Values are compared by their
// string form so that 1 and "1" match, as they do on the wire.
func (o ResolvedOptions) Find(v any) (Option, bool) {
	want := ValueString(v)
	for _, opt := range o {
		if ValueString(opt.Value) == want {
			return opt, true
		}
	}
	return Option{}, false
}

// Contains reports whether v is one of the option values
func (o ResolvedOptions) Contains(v any) bool {
	_, ok := o.Find(v)
	return ok
}

// Clone returns a copy that shares no slice storage with o
func (o ResolvedOptions) Clone() ResolvedOptions {
	if o == nil {
		return nil
	}
	out := make(ResolvedOptions, len(o))
	copy(out, o)
	return out
}

// ParseOptions normalises an options endpoint payload. Accepted shapes are
// {"Options": [...]}, {"options": [...]}, a bare array, or a bare mapping of
// value to display text. Array items are {Value|value, DisplayText|text, Data}
// objects or primitives used as both value and label.
func ParseOptions(raw []byte) (ResolvedOptions, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ResolvedOptions{}, nil
	}

	switch raw[0] {
	case '[':
		return parseOptionArray(raw)
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, goerr.Wrap(err, "failed to decode options payload")
		}
		for _, key := range []string{"Options", "options"} {
			if inner, ok := wrapper[key]; ok {
				return ParseOptions(inner)
			}
		}
		if result, ok := wrapper["Result"]; ok {
			var env Envelope
			_ = json.Unmarshal(raw, &env)
			if !env.IsOK() {
				return nil, goerr.Wrap(ErrEnvelope, "options endpoint returned a failure",
					goerr.V(MessageKey, env.Message), goerr.V("result", string(result)))
			}
			return ResolvedOptions{}, nil
		}
		return parseOptionMapping(raw)
	default:
		return nil, goerr.New("unsupported options payload", goerr.V("payload", string(raw)))
	}
}

func parseOptionArray(raw []byte) (ResolvedOptions, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, goerr.Wrap(err, "failed to decode options array")
	}

	out := make(ResolvedOptions, 0, len(items))
	for i, item := range items {
		opt, err := parseOptionItem(item)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid option item", goerr.V("index", i))
		}
		out = append(out, opt)
	}
	return out, nil
}

type optionItem struct {
	UpperValue any            `json:"Value"`
	LowerValue any            `json:"value"`
	UpperText  *string        `json:"DisplayText"`
	LowerText  *string        `json:"text"`
	Data       map[string]any `json:"Data"`
}

func parseOptionItem(raw json.RawMessage) (Option, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var item optionItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return Option{}, goerr.Wrap(err, "failed to decode option object")
		}
		value := item.UpperValue
		if value == nil {
			value = item.LowerValue
		}
		var text string
		switch {
		case item.UpperText != nil:
			text = *item.UpperText
		case item.LowerText != nil:
			text = *item.LowerText
		default:
			text = ValueString(value)
		}
		return Option{Value: value, DisplayText: text, Data: item.Data}, nil
	}

	var primitive any
	if err := json.Unmarshal(raw, &primitive); err != nil {
		return Option{}, goerr.Wrap(err, "failed to decode option primitive")
	}
	return Option{Value: primitive, DisplayText: ValueString(primitive)}, nil
}

// parseOptionMapping keeps the key order of the JSON object, which a Go map would lose.
func parseOptionMapping(raw []byte) (ResolvedOptions, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, goerr.Wrap(err, "failed to decode options mapping")
	}

	var out ResolvedOptions
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode options mapping key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, goerr.New("options mapping key is not a string", goerr.V("token", tok))
		}
		var label any
		if err := dec.Decode(&label); err != nil {
			return nil, goerr.Wrap(err, "failed to decode options mapping value", goerr.V("key", key))
		}
		out = append(out, Option{Value: key, DisplayText: ValueString(label)})
	}
	if out == nil {
		out = ResolvedOptions{}
	}
	return out, nil
}

// ValueString renders a record or option value the way it travels in form data
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}
