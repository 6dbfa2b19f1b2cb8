package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Extract copies the object at srcPath into destDir. A directory is copied
// with its contents directly into destDir; any other object is created inside
// destDir under its own name. Device nodes, named pipes and sockets are
// skipped.
func (a *Archive) Extract(ctx context.Context, srcPath, destDir string, opts ExtractOptions) (*ExtractStats, error) {
	if destDir == "" {
		return nil, fmt.Errorf("destination directory cannot be empty")
	}

	x := &extractor{
		archive: a,
		opts:    opts,
		stats:   &ExtractStats{},
		log:     a.log.WithField("destination", destDir),
		root:    filepath.Clean(destDir),
	}

	flags := opts.Filters &^ types.TreeStoreParents
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	steps, err := a.dirs.Resolve(srcPath, flags.Has(types.TreeFollowSymlinks))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", srcPath, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	last := steps[len(steps)-1]
	if inodes.AsDirectory(last.Inode) == nil {
		node, err := a.nodeFor(stepsToPath(steps), last.Name, last.Inode, last.Ref)
		if err != nil {
			return nil, err
		}
		if err := x.extract(node, last.Inode, filepath.Join(destDir, last.Name)); err != nil {
			return x.stats, fmt.Errorf("failed to extract %s: %w", srcPath, err)
		}
		x.progress(1, 1)
		return x.stats, nil
	}

	tree, err := a.Hierarchy(&srcPath, flags)
	if err != nil {
		return nil, err
	}

	top := tree.Root()
	topPath := top.Path()
	total, done := tree.Len(), 0
	err = top.Walk(func(n directory.TreeNode) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(n.Path(), topPath)
		node := fileNodeFromTree(n, n.Path())
		if err := x.extract(node, n.Inode(), filepath.Join(destDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
		done++
		x.progress(done, total)
		return nil
	})
	if err != nil {
		var cbErr *types.CallbackError
		if errors.As(err, &cbErr) {
			err = cbErr.Err
		}
		return x.stats, fmt.Errorf("failed to extract %s: %w", srcPath, err)
	}

	// directory modes are applied after their contents are written
	for i := len(x.dirs) - 1; i >= 0; i-- {
		if err := x.finishDir(x.dirs[i]); err != nil {
			return x.stats, err
		}
	}

	x.log.WithFields(logrus.Fields{
		"directories": x.stats.Directories,
		"files":       x.stats.Files,
		"symlinks":    x.stats.Symlinks,
		"skipped":     x.stats.Skipped,
		"bytes":       x.stats.Bytes,
	}).Debug("extraction complete")
	return x.stats, nil
}

type pendingDir struct {
	path string
	node *FileNode
}

type extractor struct {
	archive *Archive
	opts    ExtractOptions
	stats   *ExtractStats
	log     logrus.FieldLogger
	root    string
	dirs    []pendingDir
}

func (x *extractor) progress(done, total int) {
	if x.opts.Progress != nil {
		x.opts.Progress(done, total)
	}
}

func (x *extractor) extract(node *FileNode, inode inodes.Inode, target string) error {
	switch {
	case node.IsDirectory:
		if err := x.prepareDir(target); err != nil {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", target, err)
		}
		x.dirs = append(x.dirs, pendingDir{path: target, node: node})
		x.stats.Directories++
		return nil

	case node.IsSymlink:
		if err := x.prepare(target); err != nil {
			return err
		}
		if err := os.Symlink(node.LinkTarget, target); err != nil {
			return fmt.Errorf("failed to create symlink %s: %w", target, err)
		}
		x.stats.Symlinks++
		return x.chown(target, node)

	case node.Type == types.InodeTypeFile:
		return x.writeFile(inode, target, node)

	default:
		x.log.WithFields(logrus.Fields{"path": node.Path, "type": node.Type.String()}).Debug("skipping special file")
		x.stats.Skipped++
		return nil
	}
}

func (x *extractor) writeFile(inode inodes.Inode, target string, node *FileNode) error {
	content, err := x.archive.NewFileContentReader(inodes.AsFile(inode))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", node.Path, err)
	}
	if err := x.prepare(target); err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, os.FileMode(node.Mode&0o777))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	written, err := content.WriteTo(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	x.stats.Files++
	x.stats.Bytes += uint64(written)
	if err := x.chown(target, node); err != nil {
		return err
	}
	return os.Chtimes(target, node.ModifiedTime, node.ModifiedTime)
}

// prepare removes an existing object at target when overwriting is allowed
func (x *extractor) prepare(target string) error {
	if _, err := os.Lstat(target); err != nil {
		return nil
	}
	if !x.opts.Overwrite {
		return fmt.Errorf("%s already exists", target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

// prepareDir makes sure target is either missing or a real directory. An
// existing symlink or other object is replaced only when overwriting; it is
// never followed. The destination directory itself is taken as given.
func (x *extractor) prepareDir(target string) error {
	if target == x.root {
		return nil
	}
	info, err := os.Lstat(target)
	if err != nil || info.IsDir() {
		return nil
	}
	return x.prepare(target)
}

func (x *extractor) chown(target string, node *FileNode) error {
	if !x.opts.PreserveOwner {
		return nil
	}
	if err := os.Lchown(target, int(node.UID), int(node.GID)); err != nil {
		return fmt.Errorf("failed to set owner of %s: %w", target, err)
	}
	return nil
}

func (x *extractor) finishDir(d pendingDir) error {
	if err := x.chown(d.path, d.node); err != nil {
		return err
	}
	if err := os.Chmod(d.path, os.FileMode(d.node.Mode&0o777)); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", d.path, err)
	}
	return os.Chtimes(d.path, d.node.ModifiedTime, d.node.ModifiedTime)
}
