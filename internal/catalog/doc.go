// Package catalog loads the category reference file and resolves the
// category labels returned by the classifier. The registry is loaded once at
// startup and is immutable afterwards.
package catalog
