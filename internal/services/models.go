package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// FileNode represents one object of the archive
type FileNode struct {
	Inode        uint32
	Ref          types.InodeRef
	Path         string
	Name         string
	Type         types.InodeType
	Mode         uint16
	Size         uint64
	ModifiedTime time.Time
	UID          uint32
	GID          uint32
	LinkCount    uint32
	LinkTarget   string
	DeviceMajor  uint32
	DeviceMinor  uint32
	IsDirectory  bool
	IsSymlink    bool
	IsExtended   bool
}

// DataMapping describes where one logical range of a file is stored
type DataMapping struct {
	LogicalOffset  uint64
	LogicalSize    uint64
	PhysicalOffset uint64
	PhysicalSize   uint32
	IsCompressed   bool
	IsSparse       bool

	// IsFragment marks the tail of a file stored inside a fragment block
	IsFragment     bool
	FragmentIndex  uint32
	FragmentOffset uint32
}

// TableLocation is the start offset of one archive table
type TableLocation struct {
	Name  string
	Start uint64
}

// Present reports whether the table exists in the archive
func (t TableLocation) Present() bool {
	return t.Start != types.TableAbsent
}

// ArchiveInfo summarizes an archive
type ArchiveInfo struct {
	Fingerprint       uuid.UUID
	VersionMajor      uint16
	VersionMinor      uint16
	Compression       types.CompressionAlgorithm
	CompressorOptions *types.CompressorOptions
	BlockSize         uint32
	InodeCount        uint32
	FragmentCount     uint32
	IDCount           int
	BytesUsed         uint64
	ModificationTime  time.Time
	Flags             []string
	Exportable        bool
	Tables            []TableLocation
}

// ExtractOptions control Extract
type ExtractOptions struct {
	// Filters exclude node kinds from the extraction
	Filters types.TreeFilterFlags

	// Overwrite replaces existing files in the destination
	Overwrite bool

	// PreserveOwner applies the archive uid and gid to extracted objects
	PreserveOwner bool

	// Progress, when set, is called after each object with the number of
	// objects handled so far and the total
	Progress func(done, total int)
}

// ExtractStats counts what Extract wrote
type ExtractStats struct {
	Directories int
	Files       int
	Symlinks    int
	Skipped     int
	Bytes       uint64
}
