package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/service"
)

var moveUlog = grovelogging.NewUnifiedLogger("grove-elements.cmd.move")

func NewMoveCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <id> [parent]",
		Short: "Re-parent an item or folder",
		Long: `Move an item or folder under another folder. Without a parent the
element moves to the root.

A folder cannot be moved into itself or into one of its descendants.

Examples:
  el move <item> <folder>   # Put an item in a folder
  el move <folder>          # Move a folder to the root`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			parent := models.Root
			if len(args) == 2 {
				parent = models.ParentID(args[1])
			}
			el, err := s.Move(ctx, args[0], parent)
			if err != nil {
				return err
			}
			reportMoved(el, parent)
			return nil
		},
	}
	return cmd
}

func NewDropCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <dragged> <target>",
		Short: "Drop an element onto a folder",
		Long: `Drop one element onto a folder, making the folder its parent.
Dropping an element onto itself does nothing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			el, err := s.Drop(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if el.Kind == "" {
				moveUlog.Info("Nothing to do").
					Pretty("Dropped onto itself, nothing changed").
					PrettyOnly().
					Log(ctx)
				return nil
			}
			reportMoved(el, models.ParentID(args[1]))
			return nil
		},
	}
	return cmd
}

func reportMoved(el models.Element, parent models.ParentID) {
	dest := "the root"
	if !parent.IsRoot() {
		dest = string(parent)
	}
	moveUlog.Success("Element moved").
		Field("id", el.ID()).
		Field("kind", string(el.Kind)).
		Field("parent", string(parent)).
		Pretty(fmt.Sprintf("Moved %s %s to %s", el.Kind, el.Label(), dest)).
		PrettyOnly().
		Emit()
}
