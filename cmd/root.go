// Package cmd defines the CLI commands for the newscrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "A polite crawler for Chinese financial news sites.",
		Long: `newscrawler walks a configured set of financial news sites,
extracts article title, date, author, and body text, and persists each
article as a plain-text artifact. Robots.txt directives, per-domain
rate limits, and daily article caps keep the crawl polite.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
