// Package client manages the broker connections behind the subscription
// engine.
//
// A Manager owns one paho connection per resolved configuration profile.
// Start seals the subscriber registry, connects every profile, and
// subscribes each connection to the transport filters the registry
// derived for it. Subscriptions are re-established by the on-connect
// handler, so a dropped connection recovers its filters automatically
// when the paho auto-reconnect succeeds.
//
// Incoming messages are handed to the registry's dispatcher together
// with the receiving client's id; routing, parameter binding, and
// handler invocation all happen there.
//
// Publishing is asynchronous: Publish validates, serializes through the
// conversion registry, and hands the message to paho, confirming the
// token in the background and logging delivery failures.
//
// Hook fields (BeforeResolve, BeforeConnect, BeforeSubscribe) allow
// callers to observe or adjust the startup sequence. They must be set
// before Start and are never called concurrently.
package client
