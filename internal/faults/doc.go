// Package faults defines the sentinel error markers shared by the pipeline,
// ledger, and review components, plus helpers to tag errors with component
// context. Markers decide whether a failure halts the run (configuration,
// discovery, ledger format) or is absorbed per image (classification, IO).
package faults
