// Package review implements the correction operations over an existing
// ledger: field edits, validation, deletion, redo marking, rotation, and
// classifier-assisted rescans. Every mutating operation rewrites the whole
// CSV atomically so an interrupted save never leaves a half-written file.
package review
