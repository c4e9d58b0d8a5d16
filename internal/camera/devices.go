package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSysfsRoot is where Linux exposes video device names
const DefaultSysfsRoot = "/sys/class/video4linux"

// Device is a video input device
type Device struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// Lister finds video input devices
type Lister struct {
	Glob      string // e.g. /dev/video*
	SysfsRoot string // empty disables name lookup
}

// NewLister creates a lister for the given device glob
func NewLister(glob string) *Lister {
	return &Lister{Glob: glob, SysfsRoot: DefaultSysfsRoot}
}

// ListDevices returns the matching devices sorted by path. Devices without a
// readable name are labelled "Camera N" by position.
func (l *Lister) ListDevices() ([]Device, error) {
	paths, err := filepath.Glob(l.Glob)
	if err != nil {
		return nil, fmt.Errorf("invalid device glob %q: %w", l.Glob, err)
	}
	sort.Strings(paths)

	devices := make([]Device, 0, len(paths))
	for i, path := range paths {
		label := l.deviceName(path)
		if label == "" {
			label = fmt.Sprintf("Camera %d", i+1)
		}
		devices = append(devices, Device{Path: path, Label: label})
	}

	return devices, nil
}

func (l *Lister) deviceName(path string) string {
	if l.SysfsRoot == "" {
		return ""
	}

	data, err := os.ReadFile(filepath.Join(l.SysfsRoot, filepath.Base(path), "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
