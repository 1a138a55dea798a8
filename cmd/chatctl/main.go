package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Marketplace chat client",
	Long:  "Terminal client for the marketplace chat service.\nManage configuration, list conversations, and chat interactively.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
