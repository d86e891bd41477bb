package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-elements/pkg/service"
)

func NewToggleCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <folder>",
		Short: "Open or close a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			f, err := s.ToggleFolder(ctx, args[0])
			if err != nil {
				return err
			}
			state := "closed"
			if f.IsOpen {
				state = "opened"
			}
			moveUlog.Success("Folder toggled").
				Field("id", f.ID).
				Field("isOpen", f.IsOpen).
				Pretty(fmt.Sprintf("Folder %s %s", f.Name, state)).
				PrettyOnly().
				Emit()
			return nil
		},
	}
}
