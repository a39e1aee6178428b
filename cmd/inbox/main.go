package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewInboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "inbox",
		Short:        "WhatsApp-style webhook inbox",
		Example:      "inbox serve\ninbox ingest --dir ./payloads --workers 4",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newServeCommand(),
		newIngestCommand(),
	)

	return cmd
}

func main() {
	_ = godotenv.Load()

	if err := NewInboxCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
