package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "chatroom",
		Short: "Chat widget bot server and terminal client",
		Long: `chatroom runs a small bot server that keeps conversation transcripts,
and a terminal chat client that talks to it the way the embeddable widget does.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	root.AddCommand(newServeCmd(), newChatCmd())
	return root
}

func main() {
	logger.Setup(os.Stderr, true)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
