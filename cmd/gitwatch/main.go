package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gomantics/gitwatch/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitwatch",
		Short: "Announce new git commits to chat channels",
		Long: `gitwatch keeps local mirrors of configured repositories, polls them for
new commits and posts a formatted line per commit to the channels each
repository is configured for.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.CheckCmd())
	rootCmd.AddCommand(cli.RenderCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
