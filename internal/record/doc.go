// Package record provides the stock change record types shared by every
// other stocklog package.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import record; record imports nothing internal.
//
// Key design constraints:
//   - Quantities are int64; no float types
//   - OldQuantity is a pointer: nil means "unknown prior state", distinct from zero
//   - A committed Record is never mutated (append-only log)
//   - All JSON tags use snake_case
package record
