package memory

import (
	"strings"
	"time"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/tidwall/btree"
)

// node is one entry of the tree. A node has at most one parent and is listed
// in exactly that parent's child index. Orphaned nodes keep their own children.
type node struct {
	name   string
	dir    bool
	parent *node

	children  *btree.Map[string, *node]
	lowercase *btree.Map[string, *node]

	buffer  *stream.Buffer
	attrs   []vfs.Attribute
	modTime time.Time
}

func (mb *MemoryBackend) newNode(name string, dir bool) *node {
	n := &node{
		name:    name,
		dir:     dir,
		modTime: now(),
	}

	if dir {
		n.children = btree.NewMap[string, *node](0)
		if mb.caseInsensitive {
			n.lowercase = btree.NewMap[string, *node](0)
		}
	} else {
		n.buffer = stream.NewBuffer(nil)
	}

	return n
}

// child resolves a single path segment.
func (n *node) child(name string) *node {
	switch name {
	case "", ".":
		return n
	case "..":
		if n.parent == nil {
			return n
		}
		return n.parent
	}

	if !n.dir {
		return nil
	}

	if n.lowercase != nil {
		c, _ := n.lowercase.Get(strings.ToLower(name))
		return c
	}

	c, _ := n.children.Get(name)
	return c
}

// setParent detaches n from its current parent and attaches it to parent.
// An existing child with the same name is detached from parent first.
// MUST be called while holding the backend lock.
func (n *node) setParentUnsafe(parent *node) {
	if n.parent != nil {
		n.parent.children.Delete(n.name)
		if n.parent.lowercase != nil {
			n.parent.lowercase.Delete(strings.ToLower(n.name))
		}
	}

	n.parent = parent
	if parent == nil {
		return
	}

	if existing := parent.child(n.name); existing != nil && existing != n {
		existing.setParentUnsafe(nil)
	}

	parent.children.Set(n.name, n)
	if parent.lowercase != nil {
		parent.lowercase.Set(strings.ToLower(n.name), n)
	}
	parent.modTime = now()
}

// isAncestorOf reports whether n appears in the parent chain of other.
func (n *node) isAncestorOf(other *node) bool {
	for current := other; current != nil; current = current.parent {
		if current == n {
			return true
		}
	}
	return false
}

// pathUnsafe returns the absolute path of n, and false for orphaned nodes.
// MUST be called while holding the backend lock.
func (mb *MemoryBackend) pathUnsafe(n *node) (string, bool) {
	var segments []string

	current := n
	for current.parent != nil {
		segments = append(segments, current.name)
		current = current.parent
	}
	if current != mb.root {
		return "", false
	}

	var sb strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		sb.WriteString("/")
		sb.WriteString(segments[i])
	}
	if sb.Len() == 0 {
		return "/", true
	}
	return sb.String(), true
}

// lookupUnsafe walks path from root.
// MUST be called while holding the backend lock.
func (mb *MemoryBackend) lookupUnsafe(path string) (*node, error) {
	current := mb.root
	for _, segment := range data.Split(path) {
		if !current.dir {
			return nil, errors.NotDirectory(nil, path)
		}

		next := current.child(segment)
		if next == nil {
			return nil, errors.NotFound(nil, path)
		}
		current = next
	}

	return current, nil
}

// lookupDirUnsafe resolves path and requires it to be a directory.
// MUST be called while holding the backend lock.
func (mb *MemoryBackend) lookupDirUnsafe(path string) (*node, error) {
	n, err := mb.lookupUnsafe(path)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, errors.NotDirectory(nil, path)
	}
	return n, nil
}
