package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show clickd version information",
	Run: func(cmd *cobra.Command, args []string) {
		c := commit
		if c == "" {
			if bi, ok := debug.ReadBuildInfo(); ok {
				for _, s := range bi.Settings {
					if s.Key == "vcs.revision" {
						c = s.Value
					}
				}
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "clickd %s", version)
		if c != "" {
			fmt.Fprintf(out, " (%s)", c)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Go: %s\n", runtime.Version())
	},
}
