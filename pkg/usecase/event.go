package usecase

import (
	"slices"
	"sync"

	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// Event is a typed table event. The set of kinds is closed, see types.EventKind.
type Event interface {
	Kind() types.EventKind
}

// RecordsLoadedEvent fires after a successful list load
type RecordsLoadedEvent struct {
	Records    []model.Record
	TotalCount int
	Params     model.Params
}

// FormCreatedEvent fires when a create or edit form is ready
type FormCreatedEvent struct {
	Form     *FormHandle
	FormKind types.FormKind
}

// FormClosedEvent fires when a form is closed, submitted or not
type FormClosedEvent struct {
	FormKind types.FormKind
}

// RecordAddedEvent fires after a create succeeded or a record was pushed
type RecordAddedEvent struct {
	Record model.Record
}

// RecordUpdatedEvent fires after an update succeeded or a record was pushed
type RecordUpdatedEvent struct {
	Record model.Record
}

// RecordDeletedEvent fires after a delete succeeded or a removal was pushed
type RecordDeletedEvent struct {
	Key    string
	Record model.Record
}

// SelectionChangedEvent fires whenever the selected keys change
type SelectionChangedEvent struct {
	SelectedKeys []string
}

// BulkDeletedEvent fires once a bulk delete has finished
type BulkDeletedEvent struct {
	Deleted []string
	Failed  []string
}

// ColumnVisibilityEvent fires when a column is shown or hidden
type ColumnVisibilityEvent struct {
	Field      string
	Visibility types.Visibility
}

func (RecordsLoadedEvent) Kind() types.EventKind    { return types.EventRecordsLoaded }
func (FormCreatedEvent) Kind() types.EventKind      { return types.EventFormCreated }
func (FormClosedEvent) Kind() types.EventKind       { return types.EventFormClosed }
func (RecordAddedEvent) Kind() types.EventKind      { return types.EventRecordAdded }
func (RecordUpdatedEvent) Kind() types.EventKind    { return types.EventRecordUpdated }
func (RecordDeletedEvent) Kind() types.EventKind    { return types.EventRecordDeleted }
func (SelectionChangedEvent) Kind() types.EventKind { return types.EventSelectionChanged }
func (BulkDeletedEvent) Kind() types.EventKind      { return types.EventBulkDeleted }
func (ColumnVisibilityEvent) Kind() types.EventKind { return types.EventColumnVisibility }

// Subscription identifies a handler registered on an EventBus
type Subscription struct {
	id   uint64
	kind types.EventKind
}

type handler struct {
	id uint64
	fn func(Event)
}

// EventBus dispatches table events to subscribers synchronously, in
// subscription order. Handlers run without the bus lock held and may
// subscribe or unsubscribe.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[types.EventKind][]handler
	nextID   uint64
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[types.EventKind][]handler)}
}

// On registers fn for every event of kind
func (b *EventBus) On(kind types.EventKind, fn func(Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], handler{id: b.nextID, fn: fn})
	return Subscription{id: b.nextID, kind: kind}
}

// Once registers fn for the next event of kind only
func (b *EventBus) Once(kind types.EventKind, fn func(Event)) Subscription {
	var (
		once sync.Once
		sub  Subscription
		mu   sync.Mutex
	)
	mu.Lock()
	defer mu.Unlock()
	sub = b.On(kind, func(ev Event) {
		once.Do(func() {
			mu.Lock()
			s := sub
			mu.Unlock()
			b.Unsubscribe(s)
			fn(ev)
		})
	})
	return sub
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *EventBus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[sub.kind] = slices.DeleteFunc(b.handlers[sub.kind], func(h handler) bool {
		return h.id == sub.id
	})
}

// Emit dispatches ev to the handlers of its kind
func (b *EventBus) Emit(ev Event) {
	b.mu.RLock()
	hs := slices.Clone(b.handlers[ev.Kind()])
	b.mu.RUnlock()

	for _, h := range hs {
		h.fn(ev)
	}
}

// Count returns the number of handlers registered for kind
func (b *EventBus) Count(kind types.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

// Subscribe registers a handler typed by its event payload
func Subscribe[E Event](b *EventBus, fn func(E)) Subscription {
	var zero E
	return b.On(zero.Kind(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}

// SubscribeOnce registers a typed handler for the next event only
func SubscribeOnce[E Event](b *EventBus, fn func(E)) Subscription {
	var zero E
	return b.Once(zero.Kind(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}
