// Package workdir owns the on-disk layout of a photo folder: the pending
// images in its root, the traitees/ subfolder of processed images, the
// a_refaire/ subfolder of rejected ones, and the folder-scoped context file.
// Pending work is always recomputed from this layout, so an interrupted run
// resumes with no checkpoint file.
package workdir
