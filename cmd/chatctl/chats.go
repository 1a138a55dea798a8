package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		chats, err := eng.ctrl.Chats(ctx)
		if err != nil {
			return err
		}

		if len(chats) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		for _, chat := range chats {
			unread := ""
			if chat.UnreadCount > 0 {
				unread = fmt.Sprintf("  [%d unread]", chat.UnreadCount)
			}
			fmt.Printf("%s  %s%s\n", chat.ID, chat.Title, unread)
			if chat.LastPreview != "" {
				fmt.Printf("    %s\n", chat.LastPreview)
			}
		}
		return nil
	},
}
