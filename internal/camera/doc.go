// Package camera enumerates video input devices, keeps at most one preview
// running and periodically sends frames of the previewed device for emotion
// analysis.
package camera
