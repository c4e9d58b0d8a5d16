// Package vad provides energy-based Voice Activity Detection over PCM-16 audio.
// It evaluates fixed-size windows as bytes arrive and reports the current level
// and whether any speech-like energy was seen during a recording.
package vad
