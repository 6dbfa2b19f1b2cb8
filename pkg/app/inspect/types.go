package inspect

import (
	"time"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// Request represents an archive inspection request
type Request struct {
	Target app.ArchiveTarget

	// ShowFragments lists the fragment table
	ShowFragments bool

	// FilePath, when set, adds the block layout of one regular file
	FilePath string
}

// Response represents inspection results
type Response struct {
	Archive   ArchiveSummary `json:"archive" yaml:"archive"`
	Tables    []Table        `json:"tables" yaml:"tables"`
	Fragments []Fragment     `json:"fragments,omitempty" yaml:"fragments,omitempty"`
	File      *FileLayout    `json:"file,omitempty" yaml:"file,omitempty"`
}

// ArchiveSummary represents the super block of the inspected archive
type ArchiveSummary struct {
	Path              string            `json:"path" yaml:"path"`
	Fingerprint       string            `json:"fingerprint" yaml:"fingerprint"`
	Version           string            `json:"version" yaml:"version"`
	Compression       string            `json:"compression" yaml:"compression"`
	CompressorOptions map[string]uint32 `json:"compressor_options,omitempty" yaml:"compressor_options,omitempty"`
	BlockSize         uint32            `json:"block_size" yaml:"block_size"`
	InodeCount        uint32            `json:"inode_count" yaml:"inode_count"`
	FragmentCount     uint32            `json:"fragment_count" yaml:"fragment_count"`
	IDCount           int               `json:"id_count" yaml:"id_count"`
	BytesUsed         uint64            `json:"bytes_used" yaml:"bytes_used"`
	Modified          time.Time         `json:"modified" yaml:"modified"`
	Flags             []string          `json:"flags" yaml:"flags"`
	Exportable        bool              `json:"exportable" yaml:"exportable"`
}

// Table represents the location of one archive table
type Table struct {
	Name    string `json:"name" yaml:"name"`
	Start   uint64 `json:"start" yaml:"start"`
	Present bool   `json:"present" yaml:"present"`
}

// Fragment represents one fragment block
type Fragment struct {
	Index      uint32 `json:"index" yaml:"index"`
	Offset     uint64 `json:"offset" yaml:"offset"`
	Size       uint32 `json:"size" yaml:"size"`
	Compressed bool   `json:"compressed" yaml:"compressed"`
}

// FileLayout represents where the data of one file is stored
type FileLayout struct {
	Path   string  `json:"path" yaml:"path"`
	Size   uint64  `json:"size" yaml:"size"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// Block represents one logical range of a file
type Block struct {
	LogicalOffset  uint64 `json:"logical_offset" yaml:"logical_offset"`
	LogicalSize    uint64 `json:"logical_size" yaml:"logical_size"`
	PhysicalOffset uint64 `json:"physical_offset" yaml:"physical_offset"`
	PhysicalSize   uint32 `json:"physical_size" yaml:"physical_size"`
	Kind           string `json:"kind" yaml:"kind"`
}
