// Package session provides the in-memory registration session store and its
// expiry scheduler.
//
// # Model
//
// A session [Entry] pairs an opaque key with a [Payload]. The payload is a
// closed sum type: [Verif], [Pending], [Done], [Errored] and [Canceled] are the
// only implementations, and the entry's [State] is derived from whichever
// variant is stored. A payload can therefore never disagree with its state.
//
// # Concurrency
//
// [Store] guards its map with a single mutex. Read-modify-write sequences go
// through [Store.Update] so two requests racing on the same key cannot lose an
// update. Expiry callbacks armed by [Store.ScheduleExpiry] take the same lock.
//
// # What this package must NOT do
//
//   - Import authflow, jwt, or provider packages (no upward imports).
//   - Call persistence, mail or network collaborators.
//   - Cancel armed timers. A stale timer re-checks the state and does nothing.
package session
