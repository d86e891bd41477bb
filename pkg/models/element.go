package models

import (
	"encoding/json"
	"time"
)

// Kind discriminates the two node shapes of the tree.
type Kind string

const (
	KindItem   Kind = "item"
	KindFolder Kind = "folder"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindItem || k == KindFolder
}

// ParentID references the containing folder. The zero value means root.
// It encodes as JSON null when empty.
type ParentID string

// Root is the parent of top-level nodes.
const Root ParentID = ""

func (p ParentID) IsRoot() bool { return p == Root }

func (p ParentID) MarshalJSON() ([]byte, error) {
	if p == Root {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

func (p *ParentID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Root
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParentID(s)
	return nil
}

// Item is a leaf node.
type Item struct {
	ID        string    `json:"_id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Icon      string    `json:"icon" yaml:"icon"`
	ParentID  ParentID  `json:"parentId" yaml:"parent_id,omitempty"`
	Order     int       `json:"order" yaml:"order"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Folder is a container node. IsOpen is view state persisted server-side.
type Folder struct {
	ID        string    `json:"_id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	IsOpen    bool      `json:"isOpen" yaml:"is_open"`
	ParentID  ParentID  `json:"parentId" yaml:"parent_id,omitempty"`
	Order     int       `json:"order" yaml:"order"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Collection is the full server state, as returned by GET /elements.
type Collection struct {
	Items   []Item   `json:"items" yaml:"items"`
	Folders []Folder `json:"folders" yaml:"folders"`
}

// Clone returns a deep copy of c. Nil slices become empty slices so the
// JSON form is always {"items": [], "folders": []}.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Items:   make([]Item, len(c.Items)),
		Folders: make([]Folder, len(c.Folders)),
	}
	copy(out.Items, c.Items)
	copy(out.Folders, c.Folders)
	return out
}

// Element is either an Item or a Folder. Exactly one of Item and Folder is
// set, selected by Kind.
type Element struct {
	Kind   Kind    `json:"kind"`
	Item   *Item   `json:"item,omitempty"`
	Folder *Folder `json:"folder,omitempty"`
}

func ItemElement(i *Item) Element {
	return Element{Kind: KindItem, Item: i}
}

func FolderElement(f *Folder) Element {
	return Element{Kind: KindFolder, Folder: f}
}

// ID returns the identifier of the wrapped node.
func (e Element) ID() string {
	switch e.Kind {
	case KindItem:
		return e.Item.ID
	case KindFolder:
		return e.Folder.ID
	}
	return ""
}

// Parent returns the parent reference of the wrapped node.
func (e Element) Parent() ParentID {
	switch e.Kind {
	case KindItem:
		return e.Item.ParentID
	case KindFolder:
		return e.Folder.ParentID
	}
	return Root
}

// Order returns the sibling sort key of the wrapped node.
func (e Element) Order() int {
	switch e.Kind {
	case KindItem:
		return e.Item.Order
	case KindFolder:
		return e.Folder.Order
	}
	return 0
}

// Label returns the user-facing text: the item title or the folder name.
func (e Element) Label() string {
	switch e.Kind {
	case KindItem:
		return e.Item.Title
	case KindFolder:
		return e.Folder.Name
	}
	return ""
}
