package discover

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Request represents a file discovery request
type Request struct {
	Target app.ArchiveTarget

	// StartPath limits the search to one subtree, the root when empty
	StartPath string

	// Search criteria
	NamePattern    string
	NameRegex      string
	Extensions     []string
	CaseSensitive  bool
	Types          []string
	MinSize        string
	MaxSize        string
	ModifiedAfter  string
	ModifiedBefore string
	ContentSearch  string
	MaxResults     int
}

// Response represents discovery results
type Response struct {
	Files       []FileResult  `json:"files" yaml:"files"`
	TotalFound  int           `json:"total_found" yaml:"total_found"`
	Scanned     int           `json:"scanned" yaml:"scanned"`
	SearchTime  time.Duration `json:"search_time" yaml:"search_time"`
	ArchiveInfo ArchiveInfo   `json:"archive_info" yaml:"archive_info"`
	Truncated   bool          `json:"truncated" yaml:"truncated"`
	SearchQuery SearchQuery   `json:"search_query" yaml:"search_query"`
}

// FileResult represents a discovered file
type FileResult struct {
	Path        string    `json:"path" yaml:"path"`
	Name        string    `json:"name" yaml:"name"`
	Size        int64     `json:"size" yaml:"size"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	Type        string    `json:"type" yaml:"type"`
	Inode       uint32    `json:"inode" yaml:"inode"`
	Permissions string    `json:"permissions" yaml:"permissions"`
	Owner       uint32    `json:"owner" yaml:"owner"`
	Group       uint32    `json:"group" yaml:"group"`
	Extension   string    `json:"extension" yaml:"extension"`
	LinkTarget  string    `json:"link_target,omitempty" yaml:"link_target,omitempty"`
}

// ArchiveInfo represents information about the searched archive
type ArchiveInfo struct {
	Path        string `json:"path" yaml:"path"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Compression string `json:"compression" yaml:"compression"`
	InodeCount  uint32 `json:"inode_count" yaml:"inode_count"`
}

// SearchQuery represents the executed search parameters
type SearchQuery struct {
	StartPath      string   `json:"start_path" yaml:"start_path"`
	NamePattern    string   `json:"name_pattern,omitempty" yaml:"name_pattern,omitempty"`
	NameRegex      string   `json:"name_regex,omitempty" yaml:"name_regex,omitempty"`
	Extensions     []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive" yaml:"case_sensitive"`
	Types          []string `json:"types,omitempty" yaml:"types,omitempty"`
	MinSize        string   `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize        string   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	ModifiedAfter  string   `json:"modified_after,omitempty" yaml:"modified_after,omitempty"`
	ModifiedBefore string   `json:"modified_before,omitempty" yaml:"modified_before,omitempty"`
	ContentSearch  string   `json:"content_search,omitempty" yaml:"content_search,omitempty"`
	MaxResults     int      `json:"max_results" yaml:"max_results"`
}

// SizeClass represents file size categories for display
type SizeClass string

const (
	SizeClassTiny   SizeClass = "tiny"   // < 1KB
	SizeClassSmall  SizeClass = "small"  // < 1MB
	SizeClassMedium SizeClass = "medium" // < 100MB
	SizeClassLarge  SizeClass = "large"  // < 1GB
	SizeClassHuge   SizeClass = "huge"   // >= 1GB
)

// GetSizeClass returns the size class for display purposes
func (f *FileResult) GetSizeClass() SizeClass {
	switch {
	case f.Size < 1024:
		return SizeClassTiny
	case f.Size < 1024*1024:
		return SizeClassSmall
	case f.Size < 100*1024*1024:
		return SizeClassMedium
	case f.Size < 1024*1024*1024:
		return SizeClassLarge
	default:
		return SizeClassHuge
	}
}

// FormatSize returns a human-readable size string
func (f *FileResult) FormatSize() string {
	if f.Size < 0 {
		return fmt.Sprintf("%d B", f.Size)
	}
	return app.FormatBytes(uint64(f.Size))
}
