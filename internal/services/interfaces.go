package services

import (
	"context"
	"io"

	"github.com/deploymenttheory/go-squashfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// ArchiveService provides archive level information
type ArchiveService interface {
	Info() *ArchiveInfo
	Hierarchy(startPath *string, flags types.TreeFilterFlags) (*directory.DirectoryTree, error)
	Close() error
}

// FileSystemService provides path based access to the archive contents
type FileSystemService interface {
	GetNodeByPath(path string, follow bool) (*FileNode, error)
	ListDirectory(path string) ([]*FileNode, error)
	WalkTree(startPath string, flags types.TreeFilterFlags, callback func(*FileNode) error) error
	FindFilesByName(pattern string, maxResults int) ([]*FileNode, error)
}

// ContentService reads and extracts file data
type ContentService interface {
	GetFileMappings(path string) ([]DataMapping, error)
	OpenFile(path string) (*FileContentReader, error)
	ReadFile(path string) ([]byte, error)
	ReadFileRange(path string, offset, length uint64) ([]byte, error)
	WriteFile(w io.Writer, path string) (int64, error)
	Extract(ctx context.Context, srcPath, destDir string, opts ExtractOptions) (*ExtractStats, error)
}

var (
	_ ArchiveService    = (*Archive)(nil)
	_ FileSystemService = (*Archive)(nil)
	_ ContentService    = (*Archive)(nil)
)
