// Package trace records spans and point events for the dcir pipeline.
//
// Tracing is off unless requested on the command line:
//
//	dcir graph --trace=- --trace-level=detail main.toml
//
// # Tracers
//
//   - Nop: used when tracing is disabled
//   - StreamTracer: writes every event as it happens
//   - RingTracer: keeps the most recent events in memory
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Each event carries a Scope. The Level decides which scopes are emitted:
// phase emits driver and pass events, detail adds per-function events,
// debug adds per-block events such as splits and clones.
//
// # Context
//
// The tracer and the current span travel in a context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopePass, "dead-blocks")
//	defer span.End("")
package trace
