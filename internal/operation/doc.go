// Package operation builds task.Operation values from JSON payloads.
//
// A Registry maps an operation type name to a Factory. The HTTP surface
// accepts a type and payload, and task.RequestHandler asks the registry to
// turn them into work for a queue. Two built-in types are provided:
//
//   - delay: sleeps for duration_ms, optionally failing afterwards
//   - http_request: performs an outbound HTTP request
package operation
