// Package api is the HTTP admin surface of the queue service. It exposes
// queue statistics and the pause, resume, clear and idle controls, and it
// accepts task requests, which it emits as events for the task package to
// build and submit.
package api
