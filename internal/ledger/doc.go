// Package ledger implements the inventory CSV: one row per classified photo,
// appended durably during a batch run and rewritten atomically by the review
// tool. The file is the source of truth; ids are always recomputed from its
// contents, never from a separate counter.
package ledger
