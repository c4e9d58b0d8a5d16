// Package media provides capture and playback devices backed by external processes.
// Microphones and cameras are streams read from a command's stdout; the audio player
// pipes fetched audio into a command's stdin.
package media
