package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/essaydesk/chat-engine/internal/cli"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:   "open [chat-id]",
	Short: "Start an interactive chat session",
	Long:  "Connect to the realtime channel and start an interactive session.\nWith a chat id, that conversation is opened immediately.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := eng.router.Start(ctx); err != nil {
			return err
		}

		if len(args) == 1 {
			if err := eng.ctrl.Select(ctx, args[0]); err != nil {
				return err
			}
		}

		term := cli.NewInteractiveCLI(eng.ctrl, eng.store, eng.presence, eng.router, eng.bus, eng.cfg.Auth.UserID)
		if err := term.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}
