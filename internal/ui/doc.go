// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI lets an operator inspect the schedule queue and dispatch today's videos by hand:
//  1. [QueueView] : Browse every scheduled video; entries due today (UTC) are marked
//  2. [ConfirmView] : Confirm a dispatch of today's entries
//  3. [DispatchView] : Monitor real-time progress updates
//  4. [ResultView] : Display the batch report
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the dispatcher, providing non-blocking status reporting during uploads.
//
// Keyboard navigation uses vim-style bindings (j/k, d, y/n, r, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
