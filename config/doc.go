// Package config loads and resolves broker connection configuration.
//
// Configuration follows a three-layer model: hardcoded defaults, YAML
// file values, then environment variable overrides (MQTTBIND_*). The
// root of the file is itself a connection record acting as the default
// profile; entries under clients: override it per client id.
//
// Override records use pointer fields so "explicitly set to the zero
// value" and "absent" stay distinguishable - the merge engine only lets
// a per-client field win when it was actually set. Merging produces
// immutable Profile values, built once at startup; reconnection reuses
// the same profile.
//
// # Client id reconciliation
//
// A client record may declare its own client_id differing from the map
// key it was registered under. The record is then re-keyed to the
// declared id (the last registration for a resolved id wins), so the
// same logical client can be referenced consistently no matter which
// configuration key introduced it.
package config
