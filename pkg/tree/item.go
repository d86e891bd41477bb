package tree

import (
	"github.com/mattsolo1/grove-elements/pkg/models"
)

// Node is a single position in the derived tree. Folders carry their
// children; items never do.
type Node struct {
	Element models.Element
	Depth   int

	// Hierarchy
	Children []*Node
}

// ID returns the identifier of the element at this node.
func (n *Node) ID() string {
	return n.Element.ID()
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.Element.Kind == models.KindFolder
}

// Walk visits nodes in pre-order. Returning false from fn skips the
// children of that node.
func Walk(nodes []*Node, fn func(*Node) bool) {
	for _, n := range nodes {
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}

// Find returns the node with the given id, or nil.
func Find(nodes []*Node, id string) *Node {
	var found *Node
	Walk(nodes, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}
