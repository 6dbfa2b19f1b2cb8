package extract

import (
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Request represents an extraction request
type Request struct {
	Target app.ArchiveTarget

	// Source is the archive path to extract, the root when empty
	Source      string
	Destination string

	Overwrite      bool
	PreserveOwner  bool
	FollowSymlinks bool

	// Exclude names node kinds to leave out: devices, sockets, fifos, symlinks, empty
	Exclude []string
}

// Response represents extraction results
type Response struct {
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Directories int           `json:"directories" yaml:"directories"`
	Files       int           `json:"files" yaml:"files"`
	Symlinks    int           `json:"symlinks" yaml:"symlinks"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	Bytes       uint64        `json:"bytes" yaml:"bytes"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Total returns the number of objects written
func (r *Response) Total() int {
	return r.Directories + r.Files + r.Symlinks
}

var exclusionFilters = map[string]string{
	"devices":  "no-devices",
	"sockets":  "no-sockets",
	"fifos":    "no-fifo",
	"symlinks": "no-symlinks",
	"empty":    "no-empty",
}
