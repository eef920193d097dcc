// Package conversion turns message payloads into handler argument values
// and back.
//
// A Registry holds application-registered codecs and value converters,
// tried in registration order, with built-in fallbacks behind them:
// strings serialize as UTF-8 text, everything else through JSON. Topic
// segment values (always strings on the wire) convert to scalar handler
// parameters via the value-converter chain and strconv.
//
// Conversion failures never surface as errors at dispatch call sites.
// They are logged and the value is treated as absent, which the binder
// then resolves through required/default markers.
package conversion
