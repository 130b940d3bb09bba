package complex

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Factory creates an empty value of one node kind.
type Factory func() Value

// Registry maps wire element names to node factories. It replaces lookup
// of node kinds by reflection: an unknown element name is a plain miss.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the element name.
// Returns an error if the name is already registered.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f == nil {
		return errors.Errorf("complex: nil factory for %q", name)
	}
	if _, exists := r.factories[name]; exists {
		return errors.Errorf("complex: kind %q already registered", name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// New creates a value for name, or returns false for unknown kinds.
func (r *Registry) New(name string) (Value, bool) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Remove unregisters a kind.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

var defaultRegistry = NewRegistry()

// The default registry is filled in init because filter nodes dispatch
// their children through it.
func init() {
	kinds := map[string]Factory{
		"ItemId":                 func() Value { return NewID("", "") },
		"FolderId":               func() Value { return NewID("", "") },
		"ParentFolderId":         func() Value { return NewID("", "") },
		"ConversationId":         func() Value { return NewID("", "") },
		"Mailbox":                func() Value { return NewEmailAddress("", "") },
		"From":                   func() Value { return NewRecipient() },
		"Sender":                 func() Value { return NewRecipient() },
		"Attendee":               func() Value { return NewAttendee("", "") },
		"Body":                   func() Value { return NewBody(BodyTypeText, "") },
		"Categories":             func() Value { return NewStringList() },
		"Duration":               func() Value { return NewTimeWindow(time.Time{}, time.Time{}) },
		"Recurrence":             func() Value { return NewRecurrence() },
		"ToRecipients":           func() Value { return NewMailboxCollection() },
		"CcRecipients":           func() Value { return NewMailboxCollection() },
		"BccRecipients":          func() Value { return NewMailboxCollection() },
		"RequiredAttendees":      func() Value { return NewAttendeeCollection() },
		"OptionalAttendees":      func() Value { return NewAttendeeCollection() },
		"InternetMessageHeaders": func() Value { return NewInternetMessageHeaders() },
	}
	for _, op := range filterOps {
		op := op
		kinds[string(op)] = func() Value { return NewNode(FilterBehavior, Filter{Op: op}) }
	}

	names := maps.Keys(kinds)
	sort.Strings(names)
	for _, name := range names {
		if err := defaultRegistry.Register(name, kinds[name]); err != nil {
			panic(err)
		}
	}
}

// DefaultRegistry returns the registry of built-in kinds.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup finds a built-in kind by wire element name.
func Lookup(name string) (Factory, bool) {
	return defaultRegistry.Lookup(name)
}
