// Package task runs asynchronous operations with bounded concurrency.
//
// A TaskQueue accepts operations through Submit and starts them in
// submission order, never running more than its concurrency limit at once.
// Each submission returns an Outcome that resolves exactly once with the
// operation's value or error. The queue can be paused and resumed, pending
// work can be discarded with Clear (those outcomes fail with
// ErrQueueCleared), and callers can wait for the queue to drain with
// AwaitIdle.
//
// RequestHandler connects the queue to the events package: it builds an
// operation for each TaskRequestEvent and submits it.
package task
