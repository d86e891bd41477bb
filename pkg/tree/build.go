package tree

import (
	"sort"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

type buildOptions struct {
	openOnly bool
}

// Option configures Build.
type Option func(*buildOptions)

// OpenOnly omits the children of closed folders.
func OpenOnly() Option {
	return func(o *buildOptions) {
		o.openOnly = true
	}
}

// Build derives the nested tree below parent from the flat collections.
// Folders come before items; each group is sorted by order ascending, ties
// keep input order. Build does not modify its inputs and returns the same
// structure for the same inputs. Nodes whose parent does not resolve, or
// that sit on a parent cycle, are not reachable from root and are left out.
func Build(items []models.Item, folders []models.Folder, parent models.ParentID, opts ...Option) []*Node {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	b := &builder{
		opts:    o,
		items:   make(map[models.ParentID][]int),
		folders: make(map[models.ParentID][]int),
		visited: make(map[string]bool),
		itemSrc: items,
		dirSrc:  folders,
	}
	for i := range items {
		b.items[items[i].ParentID] = append(b.items[items[i].ParentID], i)
	}
	for i := range folders {
		b.folders[folders[i].ParentID] = append(b.folders[folders[i].ParentID], i)
	}
	if !parent.IsRoot() {
		b.visited[string(parent)] = true
	}
	return b.children(parent, 0)
}

type builder struct {
	opts    *buildOptions
	items   map[models.ParentID][]int
	folders map[models.ParentID][]int
	visited map[string]bool
	itemSrc []models.Item
	dirSrc  []models.Folder
}

func (b *builder) children(parent models.ParentID, depth int) []*Node {
	dirIdx := append([]int(nil), b.folders[parent]...)
	sort.SliceStable(dirIdx, func(i, j int) bool {
		return b.dirSrc[dirIdx[i]].Order < b.dirSrc[dirIdx[j]].Order
	})
	itemIdx := append([]int(nil), b.items[parent]...)
	sort.SliceStable(itemIdx, func(i, j int) bool {
		return b.itemSrc[itemIdx[i]].Order < b.itemSrc[itemIdx[j]].Order
	})

	nodes := make([]*Node, 0, len(dirIdx)+len(itemIdx))
	for _, i := range dirIdx {
		f := b.dirSrc[i]
		if b.visited[f.ID] {
			continue
		}
		b.visited[f.ID] = true
		n := &Node{Element: models.FolderElement(&f), Depth: depth}
		if f.IsOpen || !b.opts.openOnly {
			n.Children = b.children(models.ParentID(f.ID), depth+1)
		}
		nodes = append(nodes, n)
	}
	for _, i := range itemIdx {
		it := b.itemSrc[i]
		if b.visited[it.ID] {
			continue
		}
		b.visited[it.ID] = true
		nodes = append(nodes, &Node{Element: models.ItemElement(&it), Depth: depth})
	}
	return nodes
}

// Orphans returns the elements that are not reachable from root: their
// parent does not resolve to a folder, or they sit on a parent cycle.
// Folders are listed before items, each in input order.
func Orphans(items []models.Item, folders []models.Folder) []models.Element {
	reachable := make(map[string]bool)
	Walk(Build(items, folders, models.Root), func(n *Node) bool {
		reachable[n.ID()] = true
		return true
	})

	var out []models.Element
	for i := range folders {
		if !reachable[folders[i].ID] {
			f := folders[i]
			out = append(out, models.FolderElement(&f))
		}
	}
	for i := range items {
		if !reachable[items[i].ID] {
			it := items[i]
			out = append(out, models.ItemElement(&it))
		}
	}
	return out
}

// IsAncestor reports whether ancestorID is nodeParent itself or one of its
// ancestors, following folder parent links. It stops on unresolved parents
// and on cycles already present in the data.
func IsAncestor(folders []models.Folder, ancestorID string, nodeParent models.ParentID) bool {
	parents := make(map[string]models.ParentID, len(folders))
	for _, f := range folders {
		parents[f.ID] = f.ParentID
	}
	seen := make(map[string]bool)
	for cur := nodeParent; !cur.IsRoot(); {
		id := string(cur)
		if id == ancestorID {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		next, ok := parents[id]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
