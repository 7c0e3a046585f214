package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chatrelay/internal/app"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Inspect stored chats",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat names in creation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		names, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a chat's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		msgs, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range msgs {
			fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
		}
		return nil
	},
}

func init() {
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd)
}
