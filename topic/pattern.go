package topic

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Wildcard and shared-subscription syntax per the MQTT specification.
const (
	// SingleLevelWildcard matches exactly one topic segment.
	SingleLevelWildcard = "+"

	// MultiLevelWildcard matches zero or more trailing segments.
	// Only legal as the final segment of a filter.
	MultiLevelWildcard = "#"

	// QueuePrefix addresses a shared subscription without a group.
	QueuePrefix = "$queue/"

	// SharePrefix addresses a shared subscription with a named group.
	SharePrefix = "$share/"

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Pattern is one compiled subscription template.
//
// It is immutable after Compile and safe for concurrent use.
type Pattern struct {
	template string
	filter   string // unprefixed transport filter ({name} replaced by +)
	names    []string
	matcher  *regexp.Regexp
	qos      byte
	shared   bool
	group    string

	// Specificity rank components. Lower wildcard count is more
	// specific; longer literal text breaks ties.
	wildcards int
	literals  int
}

// Compile validates a subscription template and builds its Pattern.
//
// The template must be a legal topic filter: segments separated by '/',
// '#' only as the final segment, '+' filling exactly one segment, and
// named tokens '{name}' filling exactly one segment. Every named token
// must have an entry in paramTypes (the named parameters declared by the
// subscribing handler), otherwise compilation fails.
//
// Parameters:
//   - template: The raw subscription template
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - shared: Whether to subscribe as a shared subscription
//   - group: Shared-subscription group name ("" selects $queue/)
//   - paramTypes: Declared types of the handler's named parameters
//
// Returns:
//   - *Pattern: Compiled pattern ready for matching
//   - error: ErrInvalidPattern (wrapped) if the template is malformed
func Compile(template string, qos byte, shared bool, group string, paramTypes map[string]reflect.Type) (*Pattern, error) {
	if template == "" {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidPattern)
	}
	if qos > maxQoS {
		return nil, fmt.Errorf("%w: qos %d out of range for %q", ErrInvalidPattern, qos, template)
	}

	p := &Pattern{
		template: template,
		qos:      qos,
		shared:   shared,
		group:    group,
	}

	segments := strings.Split(template, "/")
	var expr strings.Builder
	var filter strings.Builder
	expr.WriteString("^")

	for i, segment := range segments {
		last := i == len(segments)-1
		if i > 0 && segment != MultiLevelWildcard {
			expr.WriteString("/")
		}
		if i > 0 {
			filter.WriteString("/")
		}

		switch {
		case segment == MultiLevelWildcard:
			if !last {
				return nil, fmt.Errorf("%w: '#' must be the final segment in %q", ErrInvalidPattern, template)
			}
			// '#' also matches the parent level itself, so the
			// separator is folded into the optional tail.
			if i == 0 {
				expr.WriteString(".*")
			} else {
				expr.WriteString("(?:/.*)?")
			}
			filter.WriteString(MultiLevelWildcard)
			p.wildcards++

		case segment == SingleLevelWildcard:
			expr.WriteString("[^/]+")
			filter.WriteString(SingleLevelWildcard)
			p.wildcards++

		case isNamed(segment):
			name := segment[1 : len(segment)-1]
			if name == "" {
				return nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidPattern, template)
			}
			if _, ok := paramTypes[name]; !ok {
				return nil, fmt.Errorf("%w: no handler parameter named %q for %q", ErrInvalidPattern, name, template)
			}
			expr.WriteString("([^/]+)")
			filter.WriteString(SingleLevelWildcard)
			p.names = append(p.names, name)
			p.wildcards++

		default:
			if strings.ContainsAny(segment, "+#{}") {
				return nil, fmt.Errorf("%w: segment %q in %q", ErrInvalidPattern, segment, template)
			}
			expr.WriteString(regexp.QuoteMeta(segment))
			filter.WriteString(segment)
			p.literals += len(segment)
		}
	}
	expr.WriteString("$")

	matcher, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, template, err)
	}
	p.matcher = matcher
	p.filter = filter.String()
	return p, nil
}

// isNamed reports whether a segment is a '{name}' token.
func isNamed(segment string) bool {
	return len(segment) >= 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// Template returns the raw subscription template.
func (p *Pattern) Template() string {
	return p.template
}

// QoS returns the maximum QoS level requested for this pattern.
func (p *Pattern) QoS() byte {
	return p.qos
}

// Shared reports whether this pattern subscribes as a shared subscription.
func (p *Pattern) Shared() bool {
	return p.shared
}

// Names returns the named parameters in template order. The slice is
// shared; callers must not modify it.
func (p *Pattern) Names() []string {
	return p.names
}

// Filter returns the string sent to the broker when subscribing.
//
// Named tokens are replaced by '+'. When the pattern is shared and the
// client has shared subscriptions enabled, the filter is prefixed with
// '$queue/' (no group) or '$share/<group>/'. Brokers strip this prefix
// before delivery, which is why Matches and Extract always operate on
// the unprefixed template.
func (p *Pattern) Filter(sharedEnabled bool) string {
	if p.shared && sharedEnabled {
		if p.group == "" {
			return QueuePrefix + p.filter
		}
		return SharePrefix + p.group + "/" + p.filter
	}
	return p.filter
}

// Matches reports whether a concrete topic satisfies this pattern under
// standard MQTT filter semantics ('+' exactly one segment, '#' zero or
// more trailing segments).
func (p *Pattern) Matches(topic string) bool {
	return p.matcher.MatchString(topic)
}

// Extract returns the named-segment values for a matching topic.
//
// Returns nil if the topic does not match. For a matching topic the map
// holds one entry per named token, keyed by parameter name.
func (p *Pattern) Extract(topic string) map[string]string {
	groups := p.matcher.FindStringSubmatch(topic)
	if groups == nil {
		return nil
	}
	values := make(map[string]string, len(p.names))
	for i, name := range p.names {
		values[name] = groups[i+1]
	}
	return values
}

// MoreSpecific reports whether p should be tried before other when both
// could match the same topic: fewer wildcard segments first, then longer
// literal text, then lexical template order for determinism.
func (p *Pattern) MoreSpecific(other *Pattern) bool {
	if p.wildcards != other.wildcards {
		return p.wildcards < other.wildcards
	}
	if p.literals != other.literals {
		return p.literals > other.literals
	}
	return p.template < other.template
}
