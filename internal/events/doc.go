// Package events carries job lifecycle notifications from the store and the
// workers to whoever wants them, without those components knowing the
// consumers.
//
// The primary components are:
//   - JobEvent: one lifecycle transition of one job
//   - EventHandler: interface for components that consume events
//   - EventEmitter: interface for components that publish events
//   - LogHandler and StatusCounter: the built-in consumers (structured logs and
//     per-type counts)
package events
