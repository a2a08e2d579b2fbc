package model

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Record is one row: field name to value. Values are whatever the backend sent.
type Record map[string]any

// Clone returns a shallow copy. Slice values are copied so that in-flight
// requests never observe later edits of the row.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		switch x := v.(type) {
		case []string:
			out[k] = slices.Clone(x)
		case []any:
			out[k] = slices.Clone(x)
		default:
			out[k] = v
		}
	}
	return out
}

// Merge returns a copy of r overwritten by patch
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	maps.Copy(out, patch.Clone())
	return out
}

// String returns the string form of a field value
func (r Record) String(field string) string {
	return ValueString(r[field])
}

// Params are request parameters. Values are scalars or string lists; list
// values keep their order because q/opt pairs are positional.
type Params map[string]any

// Merge returns a new Params containing p overwritten by others, left to right
func (p Params) Merge(others ...Params) Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Values converts p to url.Values. List values are sent under "name[]", the
// convention of the original transport, and nil values are skipped.
func (p Params) Values() url.Values {
	out := url.Values{}
	for k, v := range p {
		switch x := v.(type) {
		case nil:
			continue
		case []string:
			key := listKey(k)
			for _, s := range x {
				out.Add(key, s)
			}
		case []any:
			key := listKey(k)
			for _, item := range x {
				if item == nil {
					continue
				}
				out.Add(key, ValueString(item))
			}
		default:
			out.Set(k, ValueString(x))
		}
	}
	return out
}

func listKey(k string) string {
	return strings.TrimSuffix(k, "[]") + "[]"
}

// ListValue reads a list parameter from decoded form values, accepting both
// "name[]" and repeated "name".
func ListValue(values url.Values, name string) []string {
	if v, ok := values[name+"[]"]; ok {
		return v
	}
	return values[name]
}
