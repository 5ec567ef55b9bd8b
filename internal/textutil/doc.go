// Package textutil holds small text helpers shared across components:
// filename sanitization for AI-produced object names and accent folding for
// French category labels.
package textutil
