package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nutrigraph/nutribot/backend/internal/ui/tui"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat widget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// The widget owns the screen, so logs are dropped unless --log-file is set.
		client, p, cleanup, err := setup(cmd.Context(), io.Discard)
		if err != nil {
			return err
		}
		defer cleanup()
		return tui.Run(cmd.Context(), client, p)
	},
}
