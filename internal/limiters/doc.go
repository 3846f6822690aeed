// Package limiters provides the attempt-limiting policy built on top of the
// internal/rate counter primitive.
//
// # AttemptLimiter
//
// [AttemptLimiter] implements "N failures within a window, then block for a
// duration". One instance exists per (purpose, role) pair; the engine keeps
// a table of them:
//
//   - login: failures counted under login:fail:{role}:{email} in a 15 minute
//     window. The limiter only counts; locking the principal is a flow decision.
//   - verification: failures counted under verify:fail:{role}:{email} in a
//     10 minute window, with a separate verify:block:{role}:{email} key that
//     carries the block and its remaining time.
//
// # Architecture boundaries
//
// Policy thresholds come from [Policy] supplied at construction time. Store
// errors are returned as-is from internal/rate and always wrap
// rate.ErrRedisUnavailable.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting and blocking; flow functions
//     decide consequences.
package limiters
