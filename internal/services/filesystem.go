package services

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// GetNodeByPath resolves a path to a FileNode. With follow set, symbolic links
// are resolved wherever they appear.
func (a *Archive) GetNodeByPath(p string, follow bool) (*FileNode, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	steps, err := a.dirs.Resolve(p, follow)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	last := steps[len(steps)-1]
	return a.nodeFor(stepsToPath(steps), last.Name, last.Inode, last.Ref)
}

// ListDirectory lists the entries of the directory at p in on-disk order
func (a *Archive) ListDirectory(p string) ([]*FileNode, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	steps, err := a.dirs.Resolve(p, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	last := steps[len(steps)-1]
	dir := inodes.AsDirectory(last.Inode)
	if dir == nil {
		return nil, types.Errorf("list directory", types.KindNotDirectory, "%s is a %s", p, last.Inode.Type())
	}

	entries, err := a.dirs.ReadDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
	}
	dirPath := stepsToPath(steps)
	a.log.WithFields(logrus.Fields{"path": dirPath, "entries": len(entries)}).Debug("listed directory")

	nodes := make([]*FileNode, 0, len(entries))
	for _, entry := range entries {
		inode, err := a.dirs.ReadInode(entry.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read inode of %s: %w", entry.Name, err)
		}
		node, err := a.nodeFor(path.Join(dirPath, entry.Name), entry.Name, inode, entry.Ref)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// WalkTree visits every node below startPath, parents before children
func (a *Archive) WalkTree(startPath string, flags types.TreeFilterFlags, callback func(*FileNode) error) error {
	tree, err := a.Hierarchy(&startPath, flags)
	if err != nil {
		return err
	}
	prefix := a.treePrefix(startPath, flags)

	return tree.Root().Walk(func(n directory.TreeNode) error {
		node := fileNodeFromTree(n, path.Join(prefix, n.Path()))
		return callback(node)
	})
}

// FindFilesByName returns nodes whose name matches a shell pattern. A
// maxResults of zero or less returns every match.
func (a *Archive) FindFilesByName(pattern string, maxResults int) ([]*FileNode, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, types.Errorf("find files by name", types.KindInvalidArgument, "pattern %q: %v", pattern, err)
	}

	errLimit := errors.New("result limit reached")
	var results []*FileNode
	err := a.WalkTree("/", 0, func(node *FileNode) error {
		if node.Name == "" {
			return nil
		}
		if matched, _ := path.Match(pattern, node.Name); matched {
			results = append(results, node)
			if maxResults > 0 && len(results) >= maxResults {
				return errLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return results, nil
}

// treePrefix returns the archive path of the top node of a hierarchy read
// from startPath, so that TreeNode paths can be made absolute
func (a *Archive) treePrefix(startPath string, flags types.TreeFilterFlags) string {
	if flags.Has(types.TreeStoreParents) {
		return "/"
	}
	steps, err := a.dirs.Resolve(startPath, flags.Has(types.TreeFollowSymlinks))
	if err != nil {
		return "/"
	}
	return path.Dir(stepsToPath(steps))
}

func (a *Archive) nodeFor(p, name string, inode inodes.Inode, ref types.InodeRef) (*FileNode, error) {
	base := inode.Base()
	uid, err := a.ids.Lookup(base.UIDIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uid of %s: %w", p, err)
	}
	gid, err := a.ids.Lookup(base.GIDIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gid of %s: %w", p, err)
	}
	node := newFileNode(p, name, inode, ref)
	node.UID = uid
	node.GID = gid
	return node, nil
}

func fileNodeFromTree(n directory.TreeNode, p string) *FileNode {
	node := newFileNode(p, n.Name(), n.Inode(), n.Ref())
	node.UID = n.UID()
	node.GID = n.GID()
	return node
}

func newFileNode(p, name string, inode inodes.Inode, ref types.InodeRef) *FileNode {
	base := inode.Base()
	node := &FileNode{
		Inode:        base.InodeNumber,
		Ref:          ref,
		Path:         p,
		Name:         name,
		Type:         inode.Type().Basic(),
		Mode:         base.Mode,
		ModifiedTime: time.Unix(int64(base.ModificationTime), 0).UTC(),
		LinkCount:    1,
		IsExtended:   inode.Type().IsExtended(),
	}

	switch v := inode.(type) {
	case inodes.Directory:
		node.IsDirectory = true
		node.Size = uint64(v.ListingSize())
		node.LinkCount = v.LinkCount()
	case *inodes.FileInode:
		node.Size = v.FileSize()
	case *inodes.ExtendedFileInode:
		node.Size = v.FileSize()
		node.LinkCount = v.LinkCount()
	case *inodes.SymlinkInode:
		node.IsSymlink = true
		node.Size = uint64(len(v.TargetBytes))
		node.LinkCount = v.LinkCount
		node.LinkTarget, _ = v.Target()
	case *inodes.ExtendedSymlinkInode:
		node.IsSymlink = true
		node.Size = uint64(len(v.TargetBytes))
		node.LinkCount = v.LinkCount
		node.LinkTarget, _ = v.Target()
	case *inodes.DeviceInode:
		node.LinkCount = v.Body.LinkCount
		node.DeviceMajor, node.DeviceMinor = v.Major(), v.Minor()
	case *inodes.ExtendedDeviceInode:
		node.LinkCount = v.Body.LinkCount
		node.DeviceMajor, node.DeviceMinor = v.Major(), v.Minor()
	case *inodes.IpcInode:
		node.LinkCount = v.LinkCount
	case *inodes.ExtendedIpcInode:
		node.LinkCount = v.LinkCount
	}
	return node
}

func stepsToPath(steps []directory.Step) string {
	p := "/"
	for _, step := range steps[1:] {
		p = path.Join(p, step.Name)
	}
	return p
}
