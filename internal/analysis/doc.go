// Package analysis implements the HTTP client for the emotion analysis backend.
// It uploads voice recordings as multipart form data, sends text and camera frames
// as JSON, and classifies failures into transport and application errors.
package analysis
