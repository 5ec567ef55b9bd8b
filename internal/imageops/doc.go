// Package imageops holds the image manipulations around the pipeline:
// thumbnail generation for the ledger's Image column, size-target
// compression of processed photos, and the review tool's quarter-turn
// rotation.
package imageops
