package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

const (
	folderIcon = "📂"
	indent     = "  "
)

// Render writes one line per node, indented by depth.
func Render(w io.Writer, nodes []*Node) error {
	var err error
	Walk(nodes, func(n *Node) bool {
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat(indent, n.Depth), Label(n.Element))
		return true
	})
	return err
}

// Label is the display text of a single element.
func Label(e models.Element) string {
	switch e.Kind {
	case models.KindFolder:
		state := "Closed"
		if e.Folder.IsOpen {
			state = "Open"
		}
		return fmt.Sprintf("%s %s (%s)", folderIcon, e.Folder.Name, state)
	case models.KindItem:
		return fmt.Sprintf("%s %s", e.Item.Icon, e.Item.Title)
	}
	return ""
}
