package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	isvc "github.com/deploymenttheory/go-squashfs/internal/services"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// filesystemService implements the FilesystemService interface
type filesystemService struct {
	archives *archiveService
}

// NewFilesystemService creates a new filesystem service backed by the given archive service
func NewFilesystemService(svc ArchiveService) (FilesystemService, error) {
	archives, ok := svc.(*archiveService)
	if !ok || archives == nil {
		return nil, fmt.Errorf("archive service must be created by NewArchiveService")
	}
	return &filesystemService{archives: archives}, nil
}

// Stat returns information about the object at path
func (fs *filesystemService) Stat(ctx context.Context, archivePath, path string, follow bool) (FileInfo, error) {
	archive, err := fs.archive(ctx, archivePath)
	if err != nil {
		return FileInfo{}, err
	}
	node, err := archive.GetNodeByPath(path, follow)
	if err != nil {
		return FileInfo{}, err
	}
	return toFileInfo(node), nil
}

// ListDirectory lists the entries below dirPath. Without Recursive only the
// direct children are returned.
func (fs *filesystemService) ListDirectory(ctx context.Context, archivePath, dirPath string, opts ListOptions) ([]FileInfo, error) {
	files := []FileInfo{}
	top := true
	err := fs.Walk(ctx, archivePath, dirPath, opts, func(info FileInfo) error {
		if top {
			top = false
			return nil
		}
		files = append(files, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Walk visits startPath and everything below it, parents before children
func (fs *filesystemService) Walk(ctx context.Context, archivePath, startPath string, opts ListOptions, fn func(FileInfo) error) error {
	archive, err := fs.archive(ctx, archivePath)
	if err != nil {
		return err
	}
	flags, err := parseFilters(opts.Filters, opts.FollowSymlinks)
	if err != nil {
		return err
	}
	if !opts.Recursive {
		flags = flags.With(types.TreeNoRecurse)
	}

	err = archive.WalkTree(startPath, flags, func(node *isvc.FileNode) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(toFileInfo(node))
	})

	var cbErr *types.CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Err
	}
	return err
}

// ReadFile returns the contents of the regular file at path
func (fs *filesystemService) ReadFile(ctx context.Context, archivePath, path string) ([]byte, error) {
	archive, err := fs.archive(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	return archive.ReadFile(path)
}

// CopyFile streams the regular file at path to w
func (fs *filesystemService) CopyFile(ctx context.Context, archivePath, path string, w io.Writer) (int64, error) {
	archive, err := fs.archive(ctx, archivePath)
	if err != nil {
		return 0, err
	}
	return archive.WriteFile(w, path)
}

// GetFileMappings returns the storage layout of the regular file at path
func (fs *filesystemService) GetFileMappings(ctx context.Context, archivePath, path string) ([]FileMapping, error) {
	archive, err := fs.archive(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	mappings, err := archive.GetFileMappings(path)
	if err != nil {
		return nil, err
	}

	result := make([]FileMapping, 0, len(mappings))
	for _, m := range mappings {
		result = append(result, FileMapping{
			LogicalOffset:  m.LogicalOffset,
			LogicalSize:    m.LogicalSize,
			PhysicalOffset: m.PhysicalOffset,
			PhysicalSize:   m.PhysicalSize,
			Compressed:     m.IsCompressed,
			Sparse:         m.IsSparse,
			Fragment:       m.IsFragment,
		})
	}
	return result, nil
}

func (fs *filesystemService) archive(ctx context.Context, archivePath string) (*isvc.Archive, error) {
	handle, err := fs.archives.handle(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	return handle.archive, nil
}

// parseFilters converts tree filter names into flags
func parseFilters(names []string, follow bool) (types.TreeFilterFlags, error) {
	var flags types.TreeFilterFlags
	for _, name := range names {
		flag, err := types.ParseTreeFilterFlag(name)
		if err != nil {
			return 0, err
		}
		flags = flags.With(flag)
	}
	if follow {
		flags = flags.With(types.TreeFollowSymlinks)
	}
	// paths handed back to callers are always absolute
	return flags &^ types.TreeStoreParents, nil
}

func toFileInfo(node *isvc.FileNode) FileInfo {
	return FileInfo{
		Inode:       node.Inode,
		Name:        node.Name,
		Path:        node.Path,
		Type:        node.Type.String(),
		Size:        node.Size,
		Owner:       node.UID,
		Group:       node.GID,
		Mode:        node.Mode,
		Modified:    node.ModifiedTime,
		LinkCount:   node.LinkCount,
		LinkTarget:  node.LinkTarget,
		DeviceMajor: node.DeviceMajor,
		DeviceMinor: node.DeviceMinor,
		IsDirectory: node.IsDirectory,
		Extended:    node.IsExtended,
	}
}
