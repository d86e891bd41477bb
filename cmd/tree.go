package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mattsolo1/grove-core/tui/theme"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-elements/pkg/service"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

func NewTreeCmd(svc **service.Service) *cobra.Command {
	var (
		showAll     bool
		showOrphans bool
	)

	cmd := &cobra.Command{
		Use:     "tree",
		Aliases: []string{"ls", "list"},
		Short:   "Print the folder tree",
		Long: `Print the items and folders as an indented tree. Folders come before
items at every level and closed folders hide their contents unless --all
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}

			var opts []tree.Option
			if !showAll {
				opts = append(opts, tree.OpenOnly())
			}
			out := cmd.OutOrStdout()
			if err := tree.Render(out, s.Tree(opts...)); err != nil {
				return err
			}
			if showOrphans {
				return renderOrphans(out, s)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show the contents of closed folders")
	cmd.Flags().BoolVar(&showOrphans, "orphans", false, "Also list elements unreachable from the root")
	return cmd
}

func renderOrphans(w io.Writer, s *service.Service) error {
	orphans := s.Orphans()
	if len(orphans) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s\n", theme.DefaultTheme.Muted.Render("Unreachable:")); err != nil {
		return err
	}
	for _, el := range orphans {
		if _, err := fmt.Fprintf(w, "%s  (%s, parent %s)\n", tree.Label(el), el.ID(), el.Parent()); err != nil {
			return err
		}
	}
	return nil
}

func NewExportCmd(svc **service.Service) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the collection as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc
			if err := s.Load(ctx); err != nil {
				return err
			}
			return writeCollection(cmd.OutOrStdout(), s, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}

func writeCollection(w io.Writer, s *service.Service, format string) error {
	snap := s.Snapshot()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
