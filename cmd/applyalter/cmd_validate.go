package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hlop3z/applyalter/internal/cli"
	"github.com/hlop3z/applyalter/pkg/applyalter"
)

// validateCmd loads and parameter-checks alter files without touching any
// database.
func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <alter.yaml|alters.zip>...",
		Short: "Check alter files without a database",
		Long: `Load the given alter files (or zip packages) and validate them: YAML
shape, statement parameters, migration placeholders. No database is touched.`,
		Example: `  # Validate a release package before rollout
  applyalter validate release_2.zip

  # Validate individual files
  applyalter validate alter_010.yaml alter_020.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The facade validates without connecting; the placeholder
			// instance is never dialed.
			client, err := applyalter.New(applyalter.WithInstances(
				applyalter.Instance{ID: "validate", URL: "./validate.db"},
			))
			if err != nil {
				return err
			}

			infos, err := client.Validate(args...)
			if err != nil {
				fail(err)
			}

			tbl := cli.NewTable("ALTER", "SCHEMA", "INSTANCES", "STATEMENTS", "CHECKS")
			for _, info := range infos {
				instances := "all"
				if len(info.Instances) > 0 {
					instances = strings.Join(info.Instances, ",")
				}
				tbl.AddRow(info.ID, info.Schema, instances,
					strconv.Itoa(info.Statements), strconv.Itoa(info.Checks))
			}
			fmt.Print(tbl.Render())
			fmt.Println()
			fmt.Println(cli.Success(fmt.Sprintf("%d alter(s) valid", len(infos))))
			return nil
		},
	}

	return cmd
}
