package directory

import (
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// node is the arena record behind a TreeNode
type node struct {
	name     string
	uid      uint32
	gid      uint32
	inode    inodes.Inode
	ref      types.InodeRef
	parent   int
	children []int
}

// DirectoryTree owns every node of a hierarchy. Nodes are addressed by index;
// TreeNode handles stay valid for as long as the tree is referenced.
type DirectoryTree struct {
	nodes []node
	root  int
}

// Root returns the top node of the tree
func (t *DirectoryTree) Root() TreeNode {
	return TreeNode{tree: t, index: t.root}
}

// Len returns the number of nodes in the tree
func (t *DirectoryTree) Len() int {
	return len(t.nodes)
}

// Find returns the node at a slash separated path relative to the root node
func (t *DirectoryTree) Find(p string) (TreeNode, bool) {
	current := t.Root()
	for _, name := range splitPath(p) {
		next, ok := current.Child(name)
		if !ok {
			return TreeNode{}, false
		}
		current = next
	}
	return current, true
}

func (t *DirectoryTree) add(n node) int {
	t.nodes = append(t.nodes, n)
	index := len(t.nodes) - 1
	if n.parent >= 0 {
		parent := &t.nodes[n.parent]
		parent.children = append(parent.children, index)
	}
	return index
}

// drop removes the most recently added node, which must have no children
func (t *DirectoryTree) drop(index int) {
	if parent := t.nodes[index].parent; parent >= 0 {
		children := t.nodes[parent].children
		t.nodes[parent].children = children[:len(children)-1]
	}
	t.nodes = t.nodes[:index]
}

// TreeNode is a handle to one node of a DirectoryTree
type TreeNode struct {
	tree  *DirectoryTree
	index int
}

func (n TreeNode) get() *node {
	return &n.tree.nodes[n.index]
}

// Valid reports whether the handle refers to a node
func (n TreeNode) Valid() bool {
	return n.tree != nil && n.index >= 0 && n.index < len(n.tree.nodes)
}

// Name returns the entry name. The root of the archive has an empty name.
func (n TreeNode) Name() string { return n.get().name }

// UID returns the owner user id resolved through the id table
func (n TreeNode) UID() uint32 { return n.get().uid }

// GID returns the owner group id resolved through the id table
func (n TreeNode) GID() uint32 { return n.get().gid }

// Inode returns the decoded inode of the node
func (n TreeNode) Inode() inodes.Inode { return n.get().inode }

// Ref returns the inode reference the node was read from
func (n TreeNode) Ref() types.InodeRef { return n.get().ref }

// IsDirectory reports whether the node is a directory
func (n TreeNode) IsDirectory() bool { return n.get().inode.Type().IsDirectory() }

// Parent returns the parent node. The top node of a tree has none.
func (n TreeNode) Parent() (TreeNode, bool) {
	parent := n.get().parent
	if parent < 0 {
		return TreeNode{}, false
	}
	return TreeNode{tree: n.tree, index: parent}, true
}

// Children returns the child nodes in on-disk order
func (n TreeNode) Children() []TreeNode {
	indices := n.get().children
	children := make([]TreeNode, len(indices))
	for i, index := range indices {
		children[i] = TreeNode{tree: n.tree, index: index}
	}
	return children
}

// Child returns the child with the given name
func (n TreeNode) Child(name string) (TreeNode, bool) {
	for _, index := range n.get().children {
		if n.tree.nodes[index].name == name {
			return TreeNode{tree: n.tree, index: index}, true
		}
	}
	return TreeNode{}, false
}

// Path returns the slash separated path of the node from the top of the tree
func (n TreeNode) Path() string {
	var names []string
	for current, ok := n, true; ok; current, ok = current.Parent() {
		if name := current.Name(); name != "" {
			names = append(names, name)
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return "/" + strings.Join(names, "/")
}

// Walk visits the node and its descendants depth first, parents before
// children. An error returned by fn stops the walk and is returned wrapped in
// a CallbackError.
func (n TreeNode) Walk(fn func(TreeNode) error) error {
	if err := fn(n); err != nil {
		return &types.CallbackError{Err: err}
	}
	for _, child := range n.Children() {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// GetFullHierarchy reads the directory tree below startPath, or below the root
// when startPath is nil. Flags exclude node kinds and limit the descent.
func (r *Reader) GetFullHierarchy(ids interfaces.IDTableReader, startPath *string, flags types.TreeFilterFlags) (*DirectoryTree, error) {
	const op = "get full hierarchy"

	if ids == nil {
		return nil, types.Errorf(op, types.KindSequenceViolation, "id table not read")
	}
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if flags.Has(types.TreeUseExportTable) && r.exports == nil {
		return nil, types.Errorf(op, types.KindUnsupported, "archive has no export table")
	}

	steps, err := r.startSteps(startPath, flags)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{reader: r, ids: ids, flags: flags, tree: &DirectoryTree{}}

	parent := -1
	if flags.Has(types.TreeStoreParents) {
		for _, step := range steps[:len(steps)-1] {
			if parent, err = b.addNode(step.Name, step.Inode, step.Ref, parent); err != nil {
				return nil, err
			}
			b.ancestors = append(b.ancestors, step.Inode.Base().InodeNumber)
		}
	}

	start := steps[len(steps)-1]
	dir := inodes.AsDirectory(start.Inode)
	if dir == nil {
		return nil, types.Errorf(op, types.KindNotDirectory, "%s is a %s", stepsPath(steps), start.Inode.Type())
	}

	top, err := b.addNode(start.Name, start.Inode, start.Ref, parent)
	if err != nil {
		return nil, err
	}
	if err := b.fill(top, dir); err != nil {
		return nil, err
	}

	b.tree.root = 0
	return b.tree, nil
}

func (r *Reader) startSteps(startPath *string, flags types.TreeFilterFlags) ([]Step, error) {
	if startPath == nil {
		root, err := r.Root()
		if err != nil {
			return nil, err
		}
		return []Step{{Ref: r.rootRef, Inode: root}}, nil
	}
	return r.Resolve(*startPath, flags.Has(types.TreeFollowSymlinks))
}

type treeBuilder struct {
	reader    *Reader
	ids       interfaces.IDTableReader
	flags     types.TreeFilterFlags
	tree      *DirectoryTree
	ancestors []uint32
}

func (b *treeBuilder) addNode(name string, inode inodes.Inode, ref types.InodeRef, parent int) (int, error) {
	base := inode.Base()
	uid, err := b.ids.Lookup(base.UIDIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve uid of %q: %w", name, err)
	}
	gid, err := b.ids.Lookup(base.GIDIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve gid of %q: %w", name, err)
	}
	return b.tree.add(node{
		name:   name,
		uid:    uid,
		gid:    gid,
		inode:  inode,
		ref:    ref,
		parent: parent,
	}), nil
}

func (b *treeBuilder) fill(index int, dir inodes.Directory) error {
	const op = "fill directory tree"

	number := dir.Base().InodeNumber
	for _, ancestor := range b.ancestors {
		if ancestor == number {
			return types.Errorf(op, types.KindLinkLoop, "directory %d contains itself", number)
		}
	}
	b.ancestors = append(b.ancestors, number)
	defer func() { b.ancestors = b.ancestors[:len(b.ancestors)-1] }()

	entries, err := b.reader.ReadDirectory(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDot() || b.flags.Excludes(entry.Type) {
			continue
		}

		if b.flags.Has(types.TreeUseExportTable) {
			ref, err := b.reader.exports.Lookup(entry.InodeNumber)
			if err != nil {
				return fmt.Errorf("failed to look up inode %d in export table: %w", entry.InodeNumber, err)
			}
			if ref != entry.Ref {
				return types.Errorf(op, types.KindCorrupted, "export table maps inode %d to %s, directory entry %q to %s",
					entry.InodeNumber, ref, entry.Name, entry.Ref)
			}
		}

		inode, err := b.reader.ReadInode(entry.Ref)
		if err != nil {
			return err
		}
		if inode.Type().Basic() != entry.Type {
			return types.Errorf(op, types.KindCorrupted, "entry %q is a %s but its inode is a %s",
				entry.Name, entry.Type, inode.Type())
		}

		child, err := b.addNode(entry.Name, inode, entry.Ref, index)
		if err != nil {
			return err
		}

		childDir := inodes.AsDirectory(inode)
		if childDir == nil || b.flags.Has(types.TreeNoRecurse) {
			continue
		}
		if err := b.fill(child, childDir); err != nil {
			return err
		}
		if b.flags.Has(types.TreeNoEmpty) && len(b.tree.nodes[child].children) == 0 {
			b.tree.drop(child)
		}
	}
	return nil
}
