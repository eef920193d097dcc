// Package subscriber routes incoming MQTT messages to strongly-typed
// handler functions.
//
// A Subscriber pairs one handler function with the topic templates it
// listens on and the binding markers for each of its parameters. The
// Registry collects subscribers during startup, resolves embedded
// placeholders and compiles topic patterns exactly once, and then
// dispatches every incoming message against the full subscriber list.
//
// # Lifecycle
//
// The registry has a strict two-phase lifecycle. During the collect
// phase subscribers may be added and removed freely. Resolve() ends the
// phase: it substitutes placeholder values into client filters, topic
// templates and group names, compiles the topic patterns, and orders
// subscribers by priority. After Resolve the registry is immutable and
// dispatch reads it without locking.
//
// # Dispatch semantics
//
// Dispatch fans out: every subscriber whose client filter admits the
// connection and whose topic list matches is invoked, in ascending
// priority order (registration order breaks ties). Within one
// subscriber's own topic list the most specific matching template wins.
// A handler that panics, returns an error, or cannot have its required
// parameters bound never affects other subscribers or the connection's
// receive loop.
//
// # Usage
//
//	sub, err := subscriber.New(
//	    func(id string, value float64) {
//	        // ...
//	    },
//	    subscriber.Spec{
//	        Topics: []string{"sensor/{id}"},
//	        Params: []subscriber.Param{
//	            {Name: "id"},
//	            {Payload: true, Required: true},
//	        },
//	    },
//	)
package subscriber
