// Package events carries task requests between the HTTP surface and the
// task queues without either side importing the other.
//
// A TaskRequestEvent names an operation type, an optional throttling key
// and a JSON payload. EventEmitter implementations fan the event out to
// every registered EventHandler; task.RequestHandler is the handler that
// turns requests into queue submissions.
package events
