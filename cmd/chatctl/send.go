package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/essaydesk/chat-engine/internal/api"
	"github.com/essaydesk/chat-engine/internal/domain"
)

func init() {
	sendCmd.Flags().StringVar(&sendFilePath, "file", "", "Path of a file to attach")
	rootCmd.AddCommand(sendCmd)
}

var sendFilePath string

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> [text]",
	Short: "Send a single message without opening a session",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}

		chatID := args[0]
		content := ""
		if len(args) == 2 {
			content = args[1]
		}
		if content == "" && sendFilePath == "" {
			return fmt.Errorf("nothing to send: provide text, --file, or both")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		var msg *domain.Message
		if sendFilePath != "" {
			data, err := os.ReadFile(sendFilePath)
			if err != nil {
				return err
			}
			msg, err = eng.client.SendFile(ctx, api.SendFileRequest{
				ChatID:  chatID,
				Content: content,
				File: domain.FileInput{
					Name:      filepath.Base(sendFilePath),
					MimeType:  "application/octet-stream",
					SizeBytes: int64(len(data)),
					Data:      data,
				},
			})
			if err != nil {
				return err
			}
		} else {
			msg, err = eng.client.SendMessage(ctx, api.SendMessageRequest{
				ChatID:  chatID,
				Content: content,
			})
			if err != nil {
				return err
			}
		}

		fmt.Printf("Sent %s at %s\n", msg.ID, msg.Timestamp.Format(time.RFC3339))
		return nil
	},
}
