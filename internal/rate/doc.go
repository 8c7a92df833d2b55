// Package rate provides the throttles guarding registration starts.
//
// # Window semantics
//
// [RedisLimiter] uses fixed-window counters: INCR and EXPIRE NX inside one
// MULTI, so the window starts at the first hit. Key prefixes:
//   - authflow:register:email: per email, lower-cased
//   - authflow:register:ip:    per client IP
//
// [LocalLimiter] uses golang.org/x/time/rate token buckets held in memory.
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled request (the Engine maps errors).
//   - Be imported outside the authflow module.
package rate
