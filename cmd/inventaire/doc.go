// Command inventaire drives the photo inventory workflow: batch
// classification of a folder of product photos into a CSV ledger, an
// interactive review interface over that ledger, and a batch rescan of
// rows annotated for correction.
package main
