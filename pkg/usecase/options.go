package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/service/cache"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

// OptionsResolver turns option sources into concrete option lists. It keeps
// the original source of every registered field so that dependent fields
// always re-run their provider with fresh context.
type OptionsResolver struct {
	transport interfaces.Transport
	cache     *cache.Cache
	forcePost bool

	mu        sync.RWMutex
	originals map[string]model.OptionsSource

	live *Resolutions
}

// ResolverOption configures an OptionsResolver
type ResolverOption func(*OptionsResolver)

// WithForcePost selects POST (true) or GET (false) for option endpoints
func WithForcePost(post bool) ResolverOption {
	return func(r *OptionsResolver) {
		r.forcePost = post
	}
}

// NewOptionsResolver creates a resolver. A nil cache disables caching.
func NewOptionsResolver(transport interfaces.Transport, c *cache.Cache, opts ...ResolverOption) *OptionsResolver {
	r := &OptionsResolver{
		transport: transport,
		cache:     c,
		forcePost: true,
		originals: make(map[string]model.OptionsSource),
		live:      NewResolutions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records the original option source of every dynamic field. A
// field that is already registered keeps its first source.
func (r *OptionsResolver) Register(fields []model.FieldDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		if !model.IsDynamic(f.Options) {
			continue
		}
		if _, ok := r.originals[f.Name]; ok {
			continue
		}
		r.originals[f.Name] = f.Options
	}
}

// Original returns the registered source of a field
func (r *OptionsResolver) Original(field string) (model.OptionsSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.originals[field]
	return src, ok
}

// Live returns the table level resolution map, read by display text lookups
func (r *OptionsResolver) Live() *Resolutions {
	return r.live
}

// Resolved returns the live resolution of a field
func (r *OptionsResolver) Resolved(field string) (model.ResolvedOptions, bool) {
	return r.live.Get(field)
}

// Store puts a resolution into the live map unconditionally
func (r *OptionsResolver) Store(field string, opts model.ResolvedOptions) {
	r.live.Set(field, opts)
}

// Resolve returns the options of field for pc. Failures are logged and
// yield an empty list; they are never returned.
func (r *OptionsResolver) Resolve(ctx context.Context, field model.FieldDescriptor, pc *model.ProviderContext) model.ResolvedOptions {
	return r.resolve(ctx, field, pc, false)
}

// ResolveFresh resolves like Resolve but never reads or writes the cache
func (r *OptionsResolver) ResolveFresh(ctx context.Context, field model.FieldDescriptor, pc *model.ProviderContext) model.ResolvedOptions {
	return r.resolve(ctx, field, pc, true)
}

func (r *OptionsResolver) resolve(ctx context.Context, field model.FieldDescriptor, pc *model.ProviderContext, bypass bool) model.ResolvedOptions {
	opts, err := r.tryResolve(ctx, field, pc, bypass)
	if err != nil {
		logging.From(ctx).Warn("failed to resolve options",
			slog.String("field", field.Name),
			slog.String("source", model.SourceKind(field.Options)),
			logging.ErrAttr(goerr.Wrap(model.ErrResolution, err.Error(), goerr.V(model.FieldNameKey, field.Name))),
		)
		return model.ResolvedOptions{}
	}
	return opts
}

func (r *OptionsResolver) tryResolve(ctx context.Context, field model.FieldDescriptor, pc *model.ProviderContext, bypass bool) (opts model.ResolvedOptions, err error) {
	src := field.Options
	if original, ok := r.Original(field.Name); ok {
		src = original
	}
	if pc == nil {
		pc = &model.ProviderContext{}
	}

	defer func() {
		if p := recover(); p != nil {
			opts = nil
			err = goerr.New("options provider panicked", goerr.V("panic", p))
		}
	}()

	switch s := src.(type) {
	case nil:
		return model.ResolvedOptions{}, nil

	case model.StaticOptions:
		return model.ResolvedOptions(s).Clone(), nil

	case model.URLSource:
		return r.fetch(ctx, string(s), bypass)

	case model.ProviderFunc:
		pc = pc.Clone()
		if pc.DependsOnField == "" {
			pc.DependsOnField = field.DependsOn
		}
		result, err := s(ctx, pc)
		if err != nil {
			return nil, goerr.Wrap(err, "options provider failed")
		}
		if !result.IsURL() {
			if result.Options == nil {
				return model.ResolvedOptions{}, nil
			}
			return result.Options.Clone(), nil
		}
		noCache := bypass || result.NoCache || pc.NoCacheRequested()
		return r.fetch(ctx, result.URL, noCache)

	default:
		return nil, goerr.New("unsupported options source", goerr.V("source", model.SourceKind(src)))
	}
}

func (r *OptionsResolver) fetch(ctx context.Context, url string, noCache bool) (model.ResolvedOptions, error) {
	useCache := r.cache != nil && !noCache

	if useCache {
		if entry, ok := r.cache.Get(url, nil); ok {
			opts, err := model.ParseOptions(entry.Payload)
			if err == nil {
				return opts, nil
			}
			r.cache.Invalidate(url, nil)
		}
	}

	if r.transport == nil {
		return nil, goerr.New("no transport configured", goerr.V(model.EndpointKey, url))
	}

	var (
		raw []byte
		err error
	)
	if r.forcePost {
		raw, err = r.transport.Post(ctx, url, nil)
	} else {
		raw, err = r.transport.Get(ctx, url, nil)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch options", goerr.V(model.EndpointKey, url))
	}

	opts, err := model.ParseOptions(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse options", goerr.V(model.EndpointKey, url))
	}

	if useCache {
		r.cache.Set(url, nil, raw)
	}
	return opts, nil
}

// Ticket identifies one resolution in flight. It carries the context the
// resolution was computed for.
type Ticket struct {
	Field      string
	Signature  string
	Generation uint64
}

type resolution struct {
	options    model.ResolvedOptions
	signature  string
	generation uint64
}

// Resolutions is the live map of resolved options, keyed by field name.
// Entries are replaced, never mutated.
type Resolutions struct {
	mu      sync.RWMutex
	entries map[string]resolution
	next    map[string]uint64
}

// NewResolutions creates an empty map
func NewResolutions() *Resolutions {
	return &Resolutions{
		entries: make(map[string]resolution),
		next:    make(map[string]uint64),
	}
}

// Begin opens a resolution of field computed for signature
func (m *Resolutions) Begin(field, signature string) Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[field]++
	return Ticket{Field: field, Signature: signature, Generation: m.next[field]}
}

// Commit stores opts when the ticket still matches current, the signature
// of the dependency values at arrival. Results computed for other values, or
// older than what is already stored, are discarded. It reports whether opts
// were stored.
func (m *Resolutions) Commit(t Ticket, opts model.ResolvedOptions, current string) bool {
	if t.Signature != current {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[t.Field]; ok && prev.signature == t.Signature && prev.generation > t.Generation {
		return false
	}
	m.entries[t.Field] = resolution{options: opts.Clone(), signature: t.Signature, generation: t.Generation}
	return true
}

// Set stores opts without any tag check
func (m *Resolutions) Set(field string, opts model.ResolvedOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[field]++
	m.entries[field] = resolution{options: opts.Clone(), generation: m.next[field]}
}

// Get returns the stored options of field
func (m *Resolutions) Get(field string) (model.ResolvedOptions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[field]
	if !ok {
		return nil, false
	}
	return e.options.Clone(), true
}

// Has reports whether field has been resolved
func (m *Resolutions) Has(field string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[field]
	return ok
}

// dependencySignature renders the master values a dependent field's
// resolution depends on
func dependencySignature(masters []string, values map[string]string) string {
	var b strings.Builder
	for i, m := range masters {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(m)
		b.WriteByte('=')
		b.WriteString(values[m])
	}
	return b.String()
}
