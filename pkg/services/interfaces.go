package services

import (
	"context"
	"io"
	"time"
)

// ArchiveInfo represents basic archive metadata
type ArchiveInfo struct {
	Path              string
	Fingerprint       string
	VersionMajor      uint16
	VersionMinor      uint16
	Compression       string
	CompressorOptions map[string]uint32
	BlockSize         uint32
	InodeCount        uint32
	FragmentCount     uint32
	IDCount           int
	BytesUsed         uint64
	Modified          time.Time
	Flags             []string
	Exportable        bool
	Tables            []TableInfo
	OpenedAt          time.Time
}

// TableInfo represents the location of one archive table
type TableInfo struct {
	Name    string
	Start   uint64
	Present bool
}

// FragmentInfo represents one fragment table entry
type FragmentInfo struct {
	Index      uint32
	Offset     uint64
	Size       uint32
	Compressed bool
}

// FileInfo represents detailed file information
type FileInfo struct {
	Inode       uint32
	Name        string
	Path        string
	Type        string
	Size        uint64
	Owner       uint32
	Group       uint32
	Mode        uint16
	Modified    time.Time
	LinkCount   uint32
	LinkTarget  string
	DeviceMajor uint32
	DeviceMinor uint32
	IsDirectory bool
	Extended    bool
}

// FileMapping represents where one logical range of a file is stored
type FileMapping struct {
	LogicalOffset  uint64
	LogicalSize    uint64
	PhysicalOffset uint64
	PhysicalSize   uint32
	Compressed     bool
	Sparse         bool
	Fragment       bool
}

// ListOptions configures directory listing and walking
type ListOptions struct {
	Recursive      bool
	FollowSymlinks bool

	// Filters are tree filter names such as "no-devices" or "no-empty"
	Filters []string
}

// ExtractionOptions configures extraction behavior
type ExtractionOptions struct {
	OverwriteExisting bool
	PreserveOwner     bool
	FollowSymlinks    bool
	Filters           []string

	// Progress receives the number of objects handled and the total
	Progress func(done, total int)
}

// ExtractionResult summarizes an extraction
type ExtractionResult struct {
	Directories int
	Files       int
	Symlinks    int
	Skipped     int
	Bytes       uint64
	Duration    time.Duration
}

// ArchiveService handles opening archives and reading their metadata
type ArchiveService interface {
	// OpenArchive opens the archive at path, or returns the already open one
	OpenArchive(ctx context.Context, path string) (ArchiveInfo, error)

	// ListFragments returns the fragment table of an archive
	ListFragments(ctx context.Context, path string) ([]FragmentInfo, error)

	// ListOpenArchives returns the paths of all open archives
	ListOpenArchives() []string

	// CloseArchive closes one archive
	CloseArchive(path string) error

	// Close closes all open archives
	Close() error
}

// FilesystemService handles navigation and file reads inside an archive
type FilesystemService interface {
	Stat(ctx context.Context, archivePath, path string, follow bool) (FileInfo, error)
	ListDirectory(ctx context.Context, archivePath, dirPath string, opts ListOptions) ([]FileInfo, error)
	Walk(ctx context.Context, archivePath, startPath string, opts ListOptions, fn func(FileInfo) error) error
	ReadFile(ctx context.Context, archivePath, path string) ([]byte, error)
	CopyFile(ctx context.Context, archivePath, path string, w io.Writer) (int64, error)
	GetFileMappings(ctx context.Context, archivePath, path string) ([]FileMapping, error)
}

// ExtractionService handles copying archive contents to the host filesystem
type ExtractionService interface {
	Extract(ctx context.Context, archivePath, srcPath, destDir string, opts ExtractionOptions) (ExtractionResult, error)
}
