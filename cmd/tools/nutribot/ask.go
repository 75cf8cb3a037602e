package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

var askJSON bool

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the reply with its diagnostics as JSON")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cleanup, err := setup(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer cleanup()

		reply, err := client.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printReply(cmd, reply)
	},
}

func printReply(cmd *cobra.Command, reply conversation.Reply) error {
	out := cmd.OutOrStdout()
	if !askJSON {
		_, err := fmt.Fprintln(out, reply.Text)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		conversation.Reply
		ElapsedMS int64 `json:"elapsedMs"`
	}{Reply: reply, ElapsedMS: reply.Elapsed.Milliseconds()})
}
