package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/cli"
	"github.com/hlop3z/applyalter/internal/engine"
	"github.com/hlop3z/applyalter/internal/instance"
)

// applyCmd applies alter files to the configured instances.
func applyCmd() *cobra.Command {
	var instancesFile, reportLevel string
	var preview, ignoreFailures, migrateInPreview bool

	cmd := &cobra.Command{
		Use:   "apply [instances.yaml] <alter.yaml|alters.zip>...",
		Short: "Apply alter files to database instances",
		Long: `Apply alter files, in argument order, to every configured instance they
target. Alters recognized as applied already are skipped. Each alter unit is
committed once it has succeeded everywhere; after the first recorded failure
nothing further is committed.

The instances file is taken from --instances, the APPLYALTER_INSTANCES
environment variable, or the config file; otherwise the first argument is
used.`,
		Example: `  # Apply two alter files
  applyalter apply instances.yaml alter_010.yaml alter_020.yaml

  # Apply a zip package of alter files, in entry-name order
  applyalter apply instances.yaml release_2.zip

  # Show what would be done without executing or committing anything
  applyalter apply --preview instances.yaml alter_010.yaml

  # Keep going after failures and report all of them at the end
  applyalter apply --ignore-failures instances.yaml alter_010.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if instancesFile == "" {
				instancesFile = cfg.InstancesFile
			}
			if instancesFile == "" {
				if len(args) < 2 {
					return fmt.Errorf("need an instances file and at least one alter file")
				}
				instancesFile, args = args[0], args[1:]
			}
			if reportLevel == "" {
				reportLevel = cfg.ReportLevel
			}
			level, err := parseReportLevel(reportLevel)
			if err != nil {
				return err
			}

			dbcfg, err := instance.LoadConfig(instancesFile)
			if err != nil {
				fail(err)
			}
			dbcfg.IgnoreFailures = effectiveIgnorePolicy(ignoreFailures, cfg, dbcfg)

			alters, err := alter.Load(args...)
			if err != nil {
				fail(err)
			}

			handles := make([]*instance.Handle, 0, len(dbcfg.Instances))
			for _, ic := range dbcfg.Instances {
				h, err := instance.NewHandle(ic)
				if err != nil {
					fail(err)
				}
				handles = append(handles, h)
			}

			mode := engine.ModeCommit
			if preview {
				mode = engine.ModePreview
			}

			e := engine.New(handles, engine.Options{
				Mode:                       mode,
				IgnoreFailures:             dbcfg.IgnoreFailures,
				ExecuteMigrationsInPreview: migrateInPreview,
			}, engine.NewRunContext(cli.NewReporter(nil), level))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := e.Apply(ctx, alters); err != nil {
				fail(err)
			}

			fmt.Println(cli.Statusf("Finished", "%d alter(s) on %d instance(s)", len(alters), len(handles)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&instancesFile, "instances", "i", "", "Instances YAML file")
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "Display statements without executing or committing")
	cmd.Flags().BoolVar(&ignoreFailures, "ignore-failures", false, "Defer failures to the end of the run")
	cmd.Flags().BoolVar(&migrateInPreview, "migrate-in-preview", false, "Execute batched migrations even in preview mode")
	cmd.Flags().StringVar(&reportLevel, "report-level", "", "Report verbosity: main, alter, statement, step, detail")

	return cmd
}

// effectiveIgnorePolicy merges the failure policy sources. The --ignore-failures
// flag, the config file, and the instances file each may enable it; any one
// of them enabling it wins.
func effectiveIgnorePolicy(flag bool, cfg *Config, dbcfg *instance.DBConfig) bool {
	return flag || cfg.IgnoreFailures || dbcfg.IgnoreFailures
}

// parseReportLevel maps a level name to its report level.
func parseReportLevel(name string) (engine.ReportLevel, error) {
	for l := engine.LevelMain; l <= engine.LevelDetail; l++ {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown report level %q (main, alter, statement, step, detail)", name)
}
