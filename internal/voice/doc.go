// Package voice implements the voice capture and analysis round trip.
// A Session owns one microphone stream and its fragments; the Controller keeps at
// most one session alive, finalizes it on stop, uploads the payload and hands the
// result to the render dispatcher.
package voice
