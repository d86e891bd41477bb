package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Update is a partial update of one element. Nil fields are left unchanged.
// Kind selects the target collection; Title and Icon only apply to items,
// Name and IsOpen only to folders.
type Update struct {
	Kind     Kind
	Title    *string
	Icon     *string
	Name     *string
	IsOpen   *bool
	ParentID *ParentID
	Order    *int
}

// MoveTo returns an update that re-parents a node of the given kind.
func MoveTo(kind Kind, parent ParentID) Update {
	return Update{Kind: kind, ParentID: &parent}
}

// SetOpen returns a folder update for the open flag.
func SetOpen(open bool) Update {
	return Update{Kind: KindFolder, IsOpen: &open}
}

// Empty reports whether no field is set.
func (u Update) Empty() bool {
	return u.Title == nil && u.Icon == nil && u.Name == nil &&
		u.IsOpen == nil && u.ParentID == nil && u.Order == nil
}

// Validate checks that every set field belongs to Kind.
func (u Update) Validate() error {
	if !u.Kind.Valid() {
		return invalid("kind", fmt.Sprintf("unknown element kind %q", u.Kind))
	}
	if u.Empty() {
		return invalid("", "update has no fields")
	}
	switch u.Kind {
	case KindItem:
		if u.Name != nil {
			return invalid("name", "not an item field")
		}
		if u.IsOpen != nil {
			return invalid("isOpen", "not an item field")
		}
		if u.Title != nil && NormalizeText(*u.Title) == "" {
			return invalid("title", "item title is required")
		}
	case KindFolder:
		if u.Title != nil {
			return invalid("title", "not a folder field")
		}
		if u.Icon != nil {
			return invalid("icon", "not a folder field")
		}
		if u.Name != nil && NormalizeText(*u.Name) == "" {
			return invalid("name", "folder name is required")
		}
	}
	if u.Order != nil && *u.Order < 0 {
		return invalid("order", "must not be negative")
	}
	return nil
}

// MarshalJSON emits only the set fields. Kind is carried by the URL and is
// not part of the body.
func (u Update) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)
	if u.Title != nil {
		body["title"] = *u.Title
	}
	if u.Icon != nil {
		body["icon"] = *u.Icon
	}
	if u.Name != nil {
		body["name"] = *u.Name
	}
	if u.IsOpen != nil {
		body["isOpen"] = *u.IsOpen
	}
	if u.ParentID != nil {
		body["parentId"] = *u.ParentID
	}
	if u.Order != nil {
		body["order"] = *u.Order
	}
	return json.Marshal(body)
}

// UnmarshalJSON fills the fields present in data. A present "parentId": null
// is a move to root, distinct from an absent parentId. Kind is untouched.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decode := func(key string, dst any) error {
		if err := json.Unmarshal(raw[key], dst); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	}
	for key := range raw {
		var err error
		switch key {
		case "title":
			u.Title = new(string)
			err = decode(key, u.Title)
		case "icon":
			u.Icon = new(string)
			err = decode(key, u.Icon)
		case "name":
			u.Name = new(string)
			err = decode(key, u.Name)
		case "isOpen":
			u.IsOpen = new(bool)
			err = decode(key, u.IsOpen)
		case "parentId":
			u.ParentID = new(ParentID)
			err = decode(key, u.ParentID)
		case "order":
			u.Order = new(int)
			err = decode(key, u.Order)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyToItem applies the item fields of u to it.
func (u Update) ApplyToItem(it *Item, now time.Time) {
	if u.Title != nil {
		it.Title = NormalizeText(*u.Title)
	}
	if u.Icon != nil {
		it.Icon = NormalizeText(*u.Icon)
	}
	if u.ParentID != nil {
		it.ParentID = *u.ParentID
	}
	if u.Order != nil {
		it.Order = *u.Order
	}
	it.UpdatedAt = now
}

// ApplyToFolder applies the folder fields of u to f.
func (u Update) ApplyToFolder(f *Folder, now time.Time) {
	if u.Name != nil {
		f.Name = NormalizeText(*u.Name)
	}
	if u.IsOpen != nil {
		f.IsOpen = *u.IsOpen
	}
	if u.ParentID != nil {
		f.ParentID = *u.ParentID
	}
	if u.Order != nil {
		f.Order = *u.Order
	}
	f.UpdatedAt = now
}
