// Package ui implements the interactive candidate picker using bubbletea's Elm architecture.
//
// During an interactive reconciliation run, every track the matcher could not
// decide on its own is handed to [InteractiveResolver], which renders the
// ranked candidates in a scrollable list and waits for the user to choose one,
// flag the track as not available, or skip it (once or for the rest of the
// run).
//
// The [pickerModel] implements bubbletea/Elm's standard Init/Update/View
// pattern. Keyboard navigation uses vim-style bindings (j/k, enter, n, s, S,
// q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
