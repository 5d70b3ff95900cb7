// Package billing provides the utility bill and tenant allocation models.
//
// A Bill is created by an upstream extraction process and reconciled here by
// splitting its total across the tenants of its property. The split is worked
// on as a slice of Rows; Recalculate and the Set* helpers are pure functions
// over that slice so the same math serves HTTP handlers and tests.
//
// Key types:
//   - Bill: the invoice being reconciled, with its status machine
//   - Row: one tenant's draft share, before persistence
//   - Allocation: a persisted share, immutable once written
//   - Balance: the reconciliation of rows against the bill total
package billing
