// Package ui is the interactive terminal page of the voice client. Results are
// delivered to the running program through Sink, which implements
// render.Sink.
package ui
