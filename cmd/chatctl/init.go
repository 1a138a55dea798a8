package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/essaydesk/chat-engine/internal/config"
)

func init() {
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "Chat server base URL")
	initCmd.Flags().StringVar(&initUserID, "user-id", "", "Your user id")
	initCmd.Flags().StringVar(&initUserName, "user-name", "", "Your display name")
	rootCmd.AddCommand(initCmd)
}

var (
	initBaseURL  string
	initUserID   string
	initUserName string
)

var initCmd = &cobra.Command{
	Use:   "init <token>",
	Short: "Create the configuration file",
	Long:  "Store the API token (and optional server and identity settings) in ~/.chatctl/config.toml.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cfg.Auth.Token = args[0]
		if initBaseURL != "" {
			cfg.Server.BaseURL = initBaseURL
		}
		if initUserID != "" {
			cfg.Auth.UserID = initUserID
		}
		if initUserName != "" {
			cfg.Auth.UserName = initUserName
		}

		if err := config.Save(cfg); err != nil {
			return err
		}

		path, _ := config.Path()
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}
