package directory

import (
	"path"
	"strings"

	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Step is one resolved component of a path
type Step struct {
	Name  string
	Ref   types.InodeRef
	Inode inodes.Inode
}

// Lookup resolves a path relative to the root directory. Symbolic links in
// the middle of a path are always resolved; the last component is resolved
// only with follow set.
func (r *Reader) Lookup(p string, follow bool) (inodes.Inode, types.InodeRef, error) {
	steps, err := r.Resolve(p, follow)
	if err != nil {
		return nil, 0, err
	}
	last := steps[len(steps)-1]
	return last.Inode, last.Ref, nil
}

// Resolve resolves a path and returns the chain of directories leading to it.
// The first step is the root, the last step is the resolved object.
func (r *Reader) Resolve(p string, follow bool) ([]Step, error) {
	const op = "lookup path"

	root, err := r.Root()
	if err != nil {
		return nil, err
	}
	chain := []Step{{Name: "", Ref: r.rootRef, Inode: root}}

	pending := splitPath(p)
	hops := 0
	var link *types.DanglingLinkError
	linkRest := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		switch name {
		case ".":
			continue
		case "..":
			if len(chain) > 1 {
				chain = chain[:len(chain)-1]
			}
			continue
		}

		current := chain[len(chain)-1]
		dir := inodes.AsDirectory(current.Inode)
		if dir == nil {
			return nil, types.Errorf(op, types.KindNotDirectory, "%s is a %s", stepsPath(chain), current.Inode.Type())
		}

		entries, err := r.ReadDirectory(dir)
		if err != nil {
			return nil, err
		}
		entry, ok := findEntry(entries, name)
		if !ok {
			if link != nil && len(pending) >= linkRest {
				return nil, link
			}
			return nil, types.Errorf(op, types.KindNoEntry, "%s not found in %s", name, stepsPath(chain))
		}

		inode, err := r.inodes.ReadInode(entry.Ref)
		if err != nil {
			return nil, err
		}

		if symlink := inodes.AsSymlink(inode); symlink != nil && (follow || len(pending) > 0) {
			hops++
			if hops > types.LinkMax {
				return nil, &types.LinkChainError{Path: p, Limit: types.LinkMax}
			}
			target, err := symlink.Target()
			if err != nil {
				return nil, err
			}
			link = &types.DanglingLinkError{From: path.Join(stepsPath(chain), name), To: target}
			linkRest = len(pending)
			if strings.HasPrefix(target, "/") {
				chain = chain[:1]
			}
			pending = append(splitPath(target), pending...)
			continue
		}

		chain = append(chain, Step{Name: name, Ref: entry.Ref, Inode: inode})
	}

	return chain, nil
}

func findEntry(entries []Entry, name string) (Entry, bool) {
	for _, entry := range entries {
		if entry.Name == name && !entry.IsDot() {
			return entry, true
		}
	}
	return Entry{}, false
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func stepsPath(chain []Step) string {
	names := make([]string, 0, len(chain))
	for _, step := range chain[1:] {
		names = append(names, step.Name)
	}
	return "/" + strings.Join(names, "/")
}
