package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/cache"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

// AddItem creates an item at the end of parent's items. An empty icon
// defaults to models.DefaultIcon.
func (s *Service) AddItem(ctx context.Context, title, icon string, parent models.ParentID) (*models.Item, error) {
	if err := s.requireParent(parent); err != nil {
		return nil, err
	}
	draft := models.ItemDraft{
		Title:    title,
		Icon:     icon,
		ParentID: parent,
		Order:    s.nextOrder(models.KindItem, parent),
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	it, err := s.cache.CreateItem(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.relay.NotifyCreateItem(draft)
	s.log.WithFields(logrus.Fields{"id": it.ID, "parent": parent}).Info("item created")
	return it, nil
}

// AddFolder creates an open folder at the end of parent's folders.
func (s *Service) AddFolder(ctx context.Context, name string, parent models.ParentID) (*models.Folder, error) {
	if err := s.requireParent(parent); err != nil {
		return nil, err
	}
	draft := models.NewFolderDraft(name, parent, s.nextOrder(models.KindFolder, parent))
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	f, err := s.cache.CreateFolder(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	s.relay.NotifyCreateFolder(draft)
	s.log.WithFields(logrus.Fields{"id": f.ID, "parent": parent}).Info("folder created")
	return f, nil
}

// ToggleFolder flips the open state of a cached folder.
func (s *Service) ToggleFolder(ctx context.Context, id string) (*models.Folder, error) {
	el, ok := s.cache.Element(id)
	if !ok || el.Kind != models.KindFolder {
		return nil, &models.ValidationError{Field: "id", Message: fmt.Sprintf("%s is not a known folder", id)}
	}

	el, err := s.update(ctx, id, models.SetOpen(!el.Folder.IsOpen))
	if err != nil {
		return nil, err
	}
	return el.Folder, nil
}

// Move re-parents a cached element. An empty parent moves it to the root.
// Moving a folder under itself or one of its descendants fails with
// models.ErrCycle before any request is made.
func (s *Service) Move(ctx context.Context, id string, parent models.ParentID) (models.Element, error) {
	el, ok := s.cache.Element(id)
	if !ok {
		return models.Element{}, &models.ValidationError{Field: "id", Message: fmt.Sprintf("unknown element %s", id)}
	}
	if err := s.requireParent(parent); err != nil {
		return models.Element{}, err
	}
	if el.Kind == models.KindFolder && !parent.IsRoot() {
		if tree.IsAncestor(s.cache.Snapshot().Folders, id, parent) {
			return models.Element{}, models.CycleError(id, parent)
		}
	}
	return s.update(ctx, id, models.MoveTo(el.Kind, parent))
}

// Drop places dragged inside target. Dropping a node onto itself does
// nothing. target must be a cached folder.
func (s *Service) Drop(ctx context.Context, draggedID, targetID string) (models.Element, error) {
	if draggedID == targetID {
		return models.Element{}, nil
	}
	target, ok := s.cache.Element(targetID)
	if !ok || target.Kind != models.KindFolder {
		return models.Element{}, &models.ValidationError{Field: "target", Message: fmt.Sprintf("drop target %s is not a folder", targetID)}
	}
	return s.Move(ctx, draggedID, models.ParentID(targetID))
}

// update sends u, then notifies other clients. A confirmed update for an
// element missing from the cache is still announced.
func (s *Service) update(ctx context.Context, id string, u models.Update) (models.Element, error) {
	el, err := s.cache.UpdateElement(ctx, id, u)
	if err != nil && !errors.Is(err, cache.ErrNotFoundDuringUpdate) {
		return models.Element{}, fmt.Errorf("update %s %s: %w", u.Kind, id, err)
	}
	s.relay.NotifyUpdate(id, u)
	s.log.WithFields(logrus.Fields{"id": id, "kind": u.Kind}).Info("element updated")
	return el, err
}

func (s *Service) requireParent(parent models.ParentID) error {
	if parent.IsRoot() {
		return nil
	}
	el, ok := s.cache.Element(string(parent))
	if !ok || el.Kind != models.KindFolder {
		return &models.ValidationError{Field: "parentId", Message: fmt.Sprintf("parent %s is not a known folder", parent)}
	}
	return nil
}

// nextOrder is the number of kind siblings already under parent.
func (s *Service) nextOrder(kind models.Kind, parent models.ParentID) int {
	snap := s.cache.Snapshot()
	n := 0
	switch kind {
	case models.KindItem:
		for _, it := range snap.Items {
			if it.ParentID == parent {
				n++
			}
		}
	case models.KindFolder:
		for _, f := range snap.Folders {
			if f.ParentID == parent {
				n++
			}
		}
	}
	return n
}
