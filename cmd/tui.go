package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-elements/internal/tui/browser"
	"github.com/mattsolo1/grove-elements/pkg/service"
)

// NewTuiCmd creates the `el tui` command.
func NewTuiCmd(svc **service.Service, logger **logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse and rearrange elements interactively",
		Long: `Launch an interactive Terminal User Interface over the element tree.
Folders open and close in place, elements are moved by picking them up and
dropping them onto a folder, and changes made by other clients show up live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for TTY
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("TUI mode requires an interactive terminal")
			}

			s := *svc
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// The model performs the initial load itself; Connect only needs
			// to get the relay running.
			if err := s.Connect(ctx); err != nil {
				(*logger).WithError(err).Debug("initial load before TUI failed")
			}
			defer s.Disconnect()

			model := browser.New(s)
			p := tea.NewProgram(model, tea.WithAltScreen())

			final, err := p.Run()
			if m, ok := final.(browser.Model); ok {
				m.Close()
			} else {
				model.Close()
			}
			if err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		},
	}
	return cmd
}
