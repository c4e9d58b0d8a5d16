// Package render turns analysis results into updates of UI sinks.
// Sinks are addressed by logical role (text input, emotion display, response
// display, audio player, alerts) so the same dispatcher drives the terminal
// printer and the interactive UI.
package render
