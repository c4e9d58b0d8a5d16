package media

import "fmt"

// PermissionError reports that a capture device could not be opened, either
// because access was denied or the device is unavailable.
type PermissionError struct {
	Device string
	Detail string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s access denied or unavailable: %v (%s)", e.Device, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s access denied or unavailable: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// PlaybackError reports that audio playback could not start. It is never
// fatal.
type PlaybackError struct {
	Source string
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %s failed: %v", e.Source, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
