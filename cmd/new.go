package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/service"
)

var newUlog = grovelogging.NewUnifiedLogger("grove-elements.cmd.new")

func NewAddItemCmd(svc **service.Service) *cobra.Command {
	var (
		icon   string
		parent string
	)

	cmd := &cobra.Command{
		Use:   "add-item <title>",
		Short: "Create an item",
		Long: `Create an item at the end of its parent's items.

Examples:
  el add-item "Plan"                      # Item at the root
  el add-item "Budget" --parent <folder>  # Item inside a folder
  el add-item "Q1" --icon 📊`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			it, err := s.AddItem(ctx, args[0], icon, models.ParentID(parent))
			if err != nil {
				return err
			}

			newUlog.Success("Item created").
				Field("id", it.ID).
				Field("parent", string(it.ParentID)).
				Pretty(fmt.Sprintf("Created item %s: %s %s", it.ID, it.Icon, it.Title)).
				PrettyOnly().
				Emit()
			return nil
		},
	}

	cmd.Flags().StringVar(&icon, "icon", "", "Item icon (default 📄)")
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent folder id (default: root)")
	return cmd
}

func NewAddFolderCmd(svc **service.Service) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "add-folder <name>",
		Short: "Create a folder",
		Long: `Create an open folder at the end of its parent's folders.

Examples:
  el add-folder "Work"
  el add-folder "Reports" --parent <folder>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			f, err := s.AddFolder(ctx, args[0], models.ParentID(parent))
			if err != nil {
				return err
			}

			newUlog.Success("Folder created").
				Field("id", f.ID).
				Field("parent", string(f.ParentID)).
				Pretty(fmt.Sprintf("Created folder %s: %s", f.ID, f.Name)).
				PrettyOnly().
				Emit()
			return nil
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent folder id (default: root)")
	return cmd
}
