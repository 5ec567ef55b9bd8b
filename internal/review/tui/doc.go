// Package tui is the terminal review surface: a row list over the ledger
// with a detail pane and keybindings for the correction operations. All
// business logic lives in the review package; this is rendering and input
// only.
package tui
