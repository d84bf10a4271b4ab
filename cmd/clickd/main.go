package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "clickd",
	Short: "clickd - precision mouse click scheduler",
	Long: `clickd fires mouse clicks at a fixed rate or with random jitter.

Available commands:
  run       - Run the click daemon (reads commands on stdin)
  validate  - Check a config file without running it
  history   - List recorded click sessions
  version   - Show build information

Examples:
  clickd run --config ./clickd.yaml
  clickd validate --config ./clickd.yaml
  clickd history -n 20`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./clickd.yaml", "path to config file (yaml or json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
