package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultIcon is used for items created without an icon.
const DefaultIcon = "📄"

// ItemDraft is the payload of POST /items. The server assigns the id and
// timestamps.
type ItemDraft struct {
	Title    string   `json:"title"`
	Icon     string   `json:"icon"`
	ParentID ParentID `json:"parentId"`
	Order    int      `json:"order"`
}

// Normalize cleans user input in place.
func (d *ItemDraft) Normalize() {
	d.Title = NormalizeText(d.Title)
	d.Icon = NormalizeText(d.Icon)
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
}

// Validate checks the draft before it is sent.
func (d ItemDraft) Validate() error {
	if NormalizeText(d.Title) == "" {
		return invalid("title", "item title is required")
	}
	if d.Order < 0 {
		return invalid("order", "must not be negative")
	}
	return nil
}

// FolderDraft is the payload of POST /folders.
type FolderDraft struct {
	Name     string   `json:"name"`
	ParentID ParentID `json:"parentId"`
	Order    int      `json:"order"`
	IsOpen   bool     `json:"isOpen"`
}

// NewFolderDraft returns a draft that starts open.
func NewFolderDraft(name string, parent ParentID, order int) FolderDraft {
	return FolderDraft{Name: name, ParentID: parent, Order: order, IsOpen: true}
}

func (d *FolderDraft) Normalize() {
	d.Name = NormalizeText(d.Name)
}

func (d FolderDraft) Validate() error {
	if NormalizeText(d.Name) == "" {
		return invalid("name", "folder name is required")
	}
	if d.Order < 0 {
		return invalid("order", "must not be negative")
	}
	return nil
}

// NormalizeText trims surrounding whitespace and converts s to NFC so that
// visually identical titles compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
