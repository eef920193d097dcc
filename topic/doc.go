// Package topic compiles MQTT subscription templates into broker filters
// and topic matchers.
//
// A template is a normal MQTT topic filter that may additionally contain
// named segments:
//
//	sensor/{id}/temperature
//
// Compiling a template produces two related but distinct strings:
//
//   - The transport filter: what is literally sent to the broker when
//     subscribing. Named segments become single-level wildcards, and
//     shared subscriptions gain their routing prefix
//     ($queue/ or $share/<group>/).
//   - The extraction pattern: derived from the raw template, never
//     prefixed. Brokers deliver shared-subscription messages without the
//     routing prefix, so matching and named-value extraction always run
//     against the unprefixed form.
//
// Patterns also carry a specificity rank so that, when several templates
// on the same subscriber could match a concrete topic, the most specific
// one wins deterministically: fewer wildcard segments first, then longer
// literal text, then lexical template order.
package topic
