package list

import (
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Request represents a directory listing request
type Request struct {
	Target app.ArchiveTarget

	Path           string
	Recursive      bool
	FollowSymlinks bool

	// Exclude names node kinds to leave out: devices, sockets, fifos, symlinks, empty
	Exclude []string
}

// Response represents listing results
type Response struct {
	Path       string        `json:"path" yaml:"path"`
	Entries    []Entry       `json:"entries" yaml:"entries"`
	TotalSize  uint64        `json:"total_size" yaml:"total_size"`
	Counts     Counts        `json:"counts" yaml:"counts"`
	ListTime   time.Duration `json:"list_time" yaml:"list_time"`
	Recursive  bool          `json:"recursive" yaml:"recursive"`
	Exclusions []string      `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

// Entry represents one listed object
type Entry struct {
	Path        string    `json:"path" yaml:"path"`
	Name        string    `json:"name" yaml:"name"`
	Type        string    `json:"type" yaml:"type"`
	Size        uint64    `json:"size" yaml:"size"`
	Permissions string    `json:"permissions" yaml:"permissions"`
	Owner       uint32    `json:"owner" yaml:"owner"`
	Group       uint32    `json:"group" yaml:"group"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	Inode       uint32    `json:"inode" yaml:"inode"`
	LinkCount   uint32    `json:"link_count" yaml:"link_count"`
	LinkTarget  string    `json:"link_target,omitempty" yaml:"link_target,omitempty"`
	Device      string    `json:"device,omitempty" yaml:"device,omitempty"`
}

// Counts tallies the listed objects by kind
type Counts struct {
	Directories int `json:"directories" yaml:"directories"`
	Files       int `json:"files" yaml:"files"`
	Symlinks    int `json:"symlinks" yaml:"symlinks"`
	Other       int `json:"other" yaml:"other"`
}

// exclusionFilters maps exclusion names to tree filter names
var exclusionFilters = map[string]string{
	"devices":  "no-devices",
	"sockets":  "no-sockets",
	"fifos":    "no-fifo",
	"symlinks": "no-symlinks",
	"empty":    "no-empty",
}
