// Package pipeline drives a batch run over one photo folder: discover the
// pending images, classify each one, move it into traitees/ under its new
// name, and append its row to the ledger before the next image is touched.
// State lives entirely in the filesystem and the ledger, so a killed run
// resumes by simply running again.
package pipeline
