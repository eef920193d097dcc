package subscriber

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/lonwern/mqttbind/conversion"
	"github.com/lonwern/mqttbind/topic"
)

// Spec describes one handler registration: which clients and topics it
// listens on and how its parameters bind. This is the shape produced by
// whatever discovers handlers at startup (static wiring, code
// generation, a config file - the registry does not care).
type Spec struct {
	// Clients restricts dispatch to these client IDs. Empty means all
	// clients.
	Clients []string

	// Topics are the subscription templates. At least one is required.
	Topics []string

	// QoS holds per-topic QoS levels. When shorter than Topics the last
	// value is repeated; when longer it is truncated. Empty means QoS 0.
	QoS []byte

	// Shared holds per-topic shared-subscription flags, broadcast like
	// QoS.
	Shared []bool

	// Groups holds per-topic shared-subscription group names, broadcast
	// like QoS. An empty group selects the $queue/ form.
	Groups []string

	// Params aligns binding markers with the handler's parameters by
	// position. Missing trailing entries default to type-only binding.
	Params []Param

	// Priority orders dispatch across subscribers matching the same
	// message: lower runs first, registration order breaks ties.
	Priority int
}

// Subscriber is one registered handler with its compiled topic patterns.
//
// The instance returned by New is the entry's identity: registering the
// same instance twice is a no-op. Subscribers are inert until the
// registry resolves them.
type Subscriber struct {
	id       string
	spec     Spec
	fn       reflect.Value
	params   []param
	clients  map[string]struct{}
	patterns []*topic.Pattern
	resolved bool
}

// New derives a Subscriber from a handler function and its spec.
//
// The handler may be any non-variadic function; its parameter types are
// taken from the signature and paired positionally with spec.Params.
// Return values are allowed and ignored, except error results which are
// logged when non-nil.
//
// Returns:
//   - *Subscriber: The registration handle (also the entry's identity)
//   - error: ErrInvalidHandler or ErrInvalidSpec
func New(fn any, spec Spec) (*Subscriber, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: handler must be a non-nil function", ErrInvalidHandler)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic handlers are not supported", ErrInvalidHandler)
	}
	if len(spec.Topics) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", ErrInvalidSpec)
	}
	if len(spec.Params) > t.NumIn() {
		return nil, fmt.Errorf("%w: %d params declared for a %d-argument handler", ErrInvalidSpec, len(spec.Params), t.NumIn())
	}

	params := make([]param, t.NumIn())
	for i := range params {
		params[i].typ = t.In(i)
		if i < len(spec.Params) {
			params[i].Param = spec.Params[i]
		}
	}

	// Copy the mutable slices: resolution rewrites them in place and
	// must not alias caller-owned data.
	spec.Clients = slices.Clone(spec.Clients)
	spec.Topics = slices.Clone(spec.Topics)
	spec.QoS = slices.Clone(spec.QoS)
	spec.Shared = slices.Clone(spec.Shared)
	spec.Groups = slices.Clone(spec.Groups)
	spec.Params = slices.Clone(spec.Params)

	return &Subscriber{
		id:     uuid.NewString(),
		spec:   spec,
		fn:     v,
		params: params,
	}, nil
}

// ID returns the subscriber's unique identifier, used to correlate log
// entries across dispatch.
func (s *Subscriber) ID() string {
	return s.id
}

// Priority returns the dispatch priority (lower runs first).
func (s *Subscriber) Priority() int {
	return s.spec.Priority
}

// Patterns returns the compiled topic patterns in specificity order.
// Empty before resolution.
func (s *Subscriber) Patterns() []*topic.Pattern {
	return s.patterns
}

// resolve runs the one-time embedded-value substitution and pattern
// compilation. Re-invocation is a no-op.
func (s *Subscriber) resolve(resolver func(string) string) error {
	if s.resolved {
		return nil
	}
	s.resolved = true

	if resolver != nil {
		for i, c := range s.spec.Clients {
			s.spec.Clients[i] = resolver(c)
		}
		for i, t := range s.spec.Topics {
			s.spec.Topics[i] = resolver(t)
		}
		for i, g := range s.spec.Groups {
			s.spec.Groups[i] = resolver(g)
		}
	}

	s.clients = make(map[string]struct{}, len(s.spec.Clients))
	for _, c := range s.spec.Clients {
		s.clients[c] = struct{}{}
	}

	paramTypes := make(map[string]reflect.Type)
	for _, p := range s.params {
		if p.Name != "" {
			paramTypes[p.Name] = p.typ
		}
	}

	count := len(s.spec.Topics)
	qos := broadcast(s.spec.QoS, count, 0)
	shared := broadcast(s.spec.Shared, count, false)
	groups := broadcast(s.spec.Groups, count, "")

	seen := make(map[string]struct{}, count)
	for i, template := range s.spec.Topics {
		if _, dup := seen[template]; dup {
			continue
		}
		seen[template] = struct{}{}
		p, err := topic.Compile(template, qos[i], shared[i], groups[i], paramTypes)
		if err != nil {
			return err
		}
		s.patterns = append(s.patterns, p)
	}

	sort.SliceStable(s.patterns, func(i, j int) bool {
		return s.patterns[i].MoreSpecific(s.patterns[j])
	})
	return nil
}

// broadcast stretches per-topic attribute lists to the topic count:
// missing trailing values repeat the last declared one, extra values are
// truncated.
func broadcast[T any](values []T, count int, fallback T) []T {
	out := make([]T, count)
	for i := range out {
		switch {
		case i < len(values):
			out[i] = values[i]
		case len(values) > 0:
			out[i] = values[len(values)-1]
		default:
			out[i] = fallback
		}
	}
	return out
}

// matchesClient applies the client filter as a set membership test.
// An empty filter admits every client.
func (s *Subscriber) matchesClient(clientID string) bool {
	if len(s.clients) == 0 {
		return true
	}
	_, ok := s.clients[clientID]
	return ok
}

// match returns the most specific pattern matching the topic, or nil.
func (s *Subscriber) match(topicStr string) *topic.Pattern {
	for _, p := range s.patterns {
		if p.Matches(topicStr) {
			return p
		}
	}
	return nil
}

// arguments fills the handler's argument list for one message.
//
// Returns ErrMissingParameter (wrapped) when a required parameter
// resolves to no value; the caller skips the invocation.
func (s *Subscriber) arguments(pattern *topic.Pattern, topicStr string, msg *Message, conv *conversion.Registry, logger *slog.Logger) ([]reflect.Value, error) {
	values := pattern.Extract(topicStr)
	args := make([]reflect.Value, len(s.params))
	for i, p := range s.params {
		v := p.bind(pattern, topicStr, values, msg, conv, logger)
		if v == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: argument %d of subscriber %s", ErrMissingParameter, i, s.id)
			}
			v = p.Default
		}
		args[i] = argValue(v, p.typ, logger)
	}
	return args, nil
}

// accept matches and, when everything binds, invokes the handler.
func (s *Subscriber) accept(clientID, topicStr string, msg *Message, conv *conversion.Registry, logger *slog.Logger) {
	if !s.matchesClient(clientID) {
		return
	}
	pattern := s.match(topicStr)
	if pattern == nil {
		return
	}
	args, err := s.arguments(pattern, topicStr, msg, conv, logger)
	if err != nil {
		// Not actionable for this handler; other subscribers still run.
		logger.Debug("invocation skipped", "subscriber", s.id, "topic", topicStr, "reason", err)
		return
	}
	s.invoke(topicStr, args, logger)
}

// invoke calls the handler with panic isolation. A failing handler must
// never break the connection's receive loop or other subscribers.
func (s *Subscriber) invoke(topicStr string, args []reflect.Value, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic recovered",
				"subscriber", s.id,
				"topic", topicStr,
				"panic", r,
			)
		}
	}()

	for _, result := range s.fn.Call(args) {
		if err, ok := result.Interface().(error); ok && err != nil {
			logger.Warn("handler returned error",
				"subscriber", s.id,
				"topic", topicStr,
				"error", err,
			)
		}
	}
}
