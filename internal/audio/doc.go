// Package audio handles recording fragments, upload payloads and the WAV container.
// It collects capture fragments in arrival order, builds the immutable voice upload
// and writes or inspects 16-bit PCM WAV headers.
package audio
