package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mattsolo1/grove-core/tui/theme"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-elements/pkg/service"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

const clearScreen = "\033[H\033[2J"

func NewWatchCmd(svc **service.Service, logger **logrus.Logger) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-print the tree whenever another client changes it",
		Long: `Connect to the push channel and re-print the tree after every change.
Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			s := *svc

			changes, cancel := s.Changes()
			defer cancel()

			if err := s.Connect(ctx); err != nil {
				// The relay retries on the next push event.
				(*logger).WithError(err).Warn("initial load failed")
			}
			defer s.Disconnect()

			var opts []tree.Option
			if !showAll {
				opts = append(opts, tree.OpenOnly())
			}
			out := cmd.OutOrStdout()
			clear := isatty.IsTerminal(os.Stdout.Fd())

			for {
				if err := renderWatchFrame(out, s, clear, opts); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return nil
				case <-changes:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show the contents of closed folders")
	return cmd
}

func renderWatchFrame(w io.Writer, s *service.Service, clear bool, opts []tree.Option) error {
	if clear {
		if _, err := io.WriteString(w, clearScreen); err != nil {
			return err
		}
	}
	snap := s.Snapshot()
	header := fmt.Sprintf("Elements (%d folders, %d items) %s",
		len(snap.Folders), len(snap.Items), time.Now().Format("15:04:05"))
	if _, err := fmt.Fprintln(w, theme.DefaultTheme.Header.Render(header)); err != nil {
		return err
	}
	return tree.Render(w, s.Tree(opts...))
}
