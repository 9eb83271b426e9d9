// Package ui implements an interactive progress view using bubbletea's Elm architecture.
//
// The [Model] runs one pipeline operation (library load or playlist
// generation) in the background and renders a spinner plus a scrolling log of
// its progress messages. When the operation finishes, the view switches to a
// summary of the result.
//
// Progress updates flow through a channel from the tasks engine, providing
// non-blocking status reporting during long fetches.
//
// Quit with q or ctrl+c; any key dismisses the finished view.
package ui
