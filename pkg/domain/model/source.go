package model

import (
	"context"
	"maps"

	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// OptionsSource is where a field's selectable values come from. It is a closed
// variant: StaticOptions, URLSource or ProviderFunc.
type OptionsSource interface {
	sourceKind() string
}

// StaticOptions is a literal option list. It is returned unchanged, never cached.
type StaticOptions ResolvedOptions

func (StaticOptions) sourceKind() string { return "static" }

// URLSource is a fixed options endpoint
type URLSource string

func (URLSource) sourceKind() string { return "url" }

// ProviderFunc computes options, or the endpoint to load them from, for a context
type ProviderFunc func(ctx context.Context, pc *ProviderContext) (ProviderResult, error)

func (ProviderFunc) sourceKind() string { return "provider" }

// SourceKind names the variant of src for logs; "none" for nil
func SourceKind(src OptionsSource) string {
	if src == nil {
		return "none"
	}
	return src.sourceKind()
}

// IsDynamic reports whether resolving src may need a provider call or a fetch
func IsDynamic(src OptionsSource) bool {
	switch src.(type) {
	case URLSource, ProviderFunc:
		return true
	default:
		return false
	}
}

// ProviderContext is handed to a ProviderFunc
type ProviderContext struct {
	// DependedValues holds the current value of every field in the form
	DependedValues map[string]string
	Record         Record
	// FormKind is empty when options are resolved for the table columns
	FormKind types.FormKind
	// DependsOnField is the raw DependsOn list of the field being resolved
	DependsOnField string

	noCache bool
}

// ClearCache asks the resolver to bypass the cache for this resolution
func (c *ProviderContext) ClearCache() {
	c.noCache = true
}

// NoCacheRequested reports whether ClearCache was called
func (c *ProviderContext) NoCacheRequested() bool {
	return c.noCache
}

// DependsOnValue returns the current value of a master field
func (c *ProviderContext) DependsOnValue(field string) string {
	return c.DependedValues[field]
}

func (c *ProviderContext) clone() *ProviderContext {
	out := *c
	out.DependedValues = maps.Clone(c.DependedValues)
	out.Record = c.Record.Clone()
	return &out
}

// Clone returns an independent copy of c
func (c *ProviderContext) Clone() *ProviderContext {
	if c == nil {
		return &ProviderContext{}
	}
	return c.clone()
}

// ProviderResult is what a provider returns: either literal options or an
// endpoint, optionally marked as not cacheable.
type ProviderResult struct {
	Options ResolvedOptions
	URL     string
	NoCache bool
}

// ResultOptions returns literal options from a provider
func ResultOptions(opts ...Option) ProviderResult {
	return ProviderResult{Options: ResolvedOptions(opts)}
}

// ResultURL points the resolver at an endpoint
func ResultURL(url string) ProviderResult {
	return ProviderResult{URL: url}
}

// ResultURLNoCache points the resolver at an endpoint and bypasses the cache
func ResultURLNoCache(url string) ProviderResult {
	return ProviderResult{URL: url, NoCache: true}
}

// IsURL reports whether the result still needs a fetch
func (r ProviderResult) IsURL() bool {
	return r.URL != ""
}
