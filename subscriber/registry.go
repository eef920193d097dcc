package subscriber

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/lonwern/mqttbind/conversion"
)

// Filter is one (transport filter, QoS) pair a client subscribes with.
type Filter struct {
	Topic string
	QoS   byte
}

// Registry is the process-wide subscriber list.
//
// It is built single-threaded during startup (collect phase), sealed by
// Resolve, and read-only during dispatch - which is why Dispatch runs
// lock-free while each connection delivers messages on its own
// goroutine.
type Registry struct {
	mu          sync.Mutex
	subscribers []*Subscriber
	resolved    bool
	conv        *conversion.Registry
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
//
// Parameters:
//   - conv: Conversion registry used for payload and topic-value binding
//   - logger: Destination for dispatch-time logging (nil discards)
func NewRegistry(conv *conversion.Registry, logger *slog.Logger) *Registry {
	if conv == nil {
		conv = conversion.NewRegistry(logger)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{conv: conv, logger: logger}
}

// Register adds a subscriber during the collect phase.
//
// Registration is idempotent by entry identity: adding the same
// *Subscriber again is a no-op. Returns ErrResolved once the registry
// has been sealed.
func (r *Registry) Register(s *Subscriber) error {
	if s == nil {
		return fmt.Errorf("%w: nil subscriber", ErrInvalidHandler)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return ErrResolved
	}
	for _, existing := range r.subscribers {
		if existing == s {
			return nil
		}
	}
	r.subscribers = append(r.subscribers, s)
	return nil
}

// Remove drops a subscriber during the collect phase. Intended for
// pre-resolution hooks that prune discovered handlers.
func (r *Registry) Remove(s *Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return ErrResolved
	}
	for i, existing := range r.subscribers {
		if existing == s {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			return nil
		}
	}
	return nil
}

// Subscribers returns a snapshot of the current entries.
func (r *Registry) Subscribers() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Subscriber, len(r.subscribers))
	copy(out, r.subscribers)
	return out
}

// Resolve seals the registry: it substitutes embedded placeholders into
// client filters, topic templates and group names, compiles the topic
// patterns, and orders subscribers by ascending priority (registration
// order breaks ties).
//
// Must complete before any transport connection opens. Re-invocation is
// a no-op. A resolver of nil skips substitution.
//
// Returns:
//   - error: The first pattern compilation failure (fatal at startup)
func (r *Registry) Resolve(resolver func(string) string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return nil
	}

	for _, s := range r.subscribers {
		if err := s.resolve(resolver); err != nil {
			return err
		}
	}
	sort.SliceStable(r.subscribers, func(i, j int) bool {
		return r.subscribers[i].Priority() < r.subscribers[j].Priority()
	})
	r.resolved = true
	return nil
}

// Resolved reports whether the registry has been sealed.
func (r *Registry) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Filters returns the deduplicated (transport filter, QoS) pairs a
// client must subscribe with, in first-seen order. When the same filter
// appears at several QoS levels the highest wins.
//
// sharedEnabled controls whether shared patterns keep their $queue/ or
// $share/ prefix; a client with shared subscriptions disabled subscribes
// to the plain filter instead.
func (r *Registry) Filters(clientID string, sharedEnabled bool) ([]Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resolved {
		return nil, ErrNotResolved
	}

	var filters []Filter
	index := make(map[string]int)
	for _, s := range r.subscribers {
		if !s.matchesClient(clientID) {
			continue
		}
		for _, p := range s.patterns {
			f := p.Filter(sharedEnabled)
			if i, ok := index[f]; ok {
				if p.QoS() > filters[i].QoS {
					filters[i].QoS = p.QoS()
				}
				continue
			}
			index[f] = len(filters)
			filters = append(filters, Filter{Topic: f, QoS: p.QoS()})
		}
	}
	return filters, nil
}

// Dispatch routes one incoming message.
//
// Every subscriber admitted by its client filter and matching the topic
// is invoked - dispatch fans out across entries rather than stopping at
// the first match. Within one entry only its most specific matching
// template fires. msg may be nil for synthetic invocations.
//
// Handler faults (panics, returned errors, unbindable required
// parameters) are logged and isolated; nothing here may terminate the
// connection's receive loop.
func (r *Registry) Dispatch(clientID, topicStr string, msg *Message) {
	for _, s := range r.subscribers {
		s.accept(clientID, topicStr, msg, r.conv, r.logger)
	}
}
