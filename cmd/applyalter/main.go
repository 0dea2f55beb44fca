// Package main provides the CLI for the applyalter database migration tool.
// applyalter applies ordered, versioned alter units to one or more database
// instances, skipping units their checks recognize as applied already.
//
// Usage:
//
//	applyalter apply instances.yaml alter_010.yaml ...   # Apply alter files
//	applyalter apply instances.yaml alters.zip           # Apply a packaged set
//	applyalter validate alter_010.yaml ...               # Check alter files, no DB
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Database drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hlop3z/applyalter/internal/cli"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	configFile string
	noColor    bool
	trace      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "applyalter",
		Short:   "Apply versioned alter scripts to database instances",
		Long:    `applyalter applies ordered, versioned alter units to one or more database instances, with idempotency checks, batched data migrations and a run-wide commit discipline.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				cli.SetDefault(cli.NewConfigWithMode(cli.ModePlain))
			}
		},
	}

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "applyalter.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Print the full diagnostic chain on failure")

	rootCmd.AddCommand(
		applyCmd(),
		validateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// versionCmd prints the build version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("applyalter %s\n", version)
		},
	}
}
