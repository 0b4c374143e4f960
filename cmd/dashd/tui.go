package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dashcore/internal/adapters/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var inline bool
	cmd := &cobra.Command{
		Use:   "tui <dashboard>",
		Short: "Browse a dashboard in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bootstrap(cmd.Context()); err != nil {
				return err
			}
			defer a.sync()
			eng, err := a.engine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts := []tea.ProgramOption{tea.WithContext(cmd.Context())}
			if !inline {
				opts = append(opts, tea.WithAltScreen())
			}
			return tui.Run(eng, opts...)
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "render below the prompt instead of the alternate screen")
	return cmd
}
