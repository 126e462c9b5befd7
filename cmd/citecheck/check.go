// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pdiddy/citecheck/internal/citations"
	"github.com/pdiddy/citecheck/internal/report"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check <citations-file>",
	Short: "Audit a reference list",
	Long: `Check reads structured citations (YAML with a top-level "citations" list,
or JSON), looks each one up in the enabled bibliographic sources, and reports
every discrepancy with its severity. Files named *.csl.json or *.csl.yaml
(or --format csl) are read as CSL data exported by reference managers.

Failed verifications are findings, not command errors: the exit status is
non-zero only for input or configuration problems, unless --strict is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	addCheckFlags(checkCmd.Flags())
	rootCmd.AddCommand(checkCmd)
}

func addCheckFlags(fs *pflag.FlagSet) {
	fs.Bool("json", false, "output the report as JSON")
	fs.Bool("yaml", false, "output the report as YAML")
	fs.String("format", "", "input format: yaml, json, csl (default from file name)")
	fs.Bool("strict", false, "exit non-zero when any finding is an error")
	fs.Duration("timeout", 0, "budget for the whole run (default from config)")
	fs.Int("workers", 0, "citations checked concurrently (default from config)")
	fs.String("sources", "", "comma-separated sources to query (e.g. crossref,openalex)")
	fs.String("cache", "", "cache backend: none, memory, sqlite, postgres")
	fs.String("cache-path", "", "SQLite cache file")
	fs.Float64("acceptance", 0, "minimum match score (default from config)")
	fs.String("synonyms", "", "YAML file extending the venue synonym table")
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	yamlOut, _ := cmd.Flags().GetBool("yaml")
	if jsonOut && yamlOut {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyCheckFlags(cmd, &cfg); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	cs, err := citations.LoadAs(args[0], citations.Format(format))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	auditor, closeCache, err := buildAuditor(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing cache: %v\n", err)
		}
	}()

	run := auditor.Run(ctx, cs)

	switch {
	case jsonOut:
		if err := report.FormatJSON(run, os.Stdout); err != nil {
			return err
		}
	case yamlOut:
		if err := report.FormatYAML(run, os.Stdout); err != nil {
			return err
		}
	default:
		report.FormatTable(run, os.Stdout)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && run.Summary.Errors > 0 {
		return fmt.Errorf("%d citation error(s) found", run.Summary.Errors)
	}
	return nil
}

// applyCheckFlags overrides configuration with the flags the user set.
func applyCheckFlags(cmd *cobra.Command, cfg *types.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Run.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("workers") {
		cfg.Run.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("acceptance") {
		v, _ := flags.GetFloat64("acceptance")
		if v <= 0 || v > 1 {
			return fmt.Errorf("--acceptance must be in (0, 1], got %g", v)
		}
		cfg.Match.AcceptanceThreshold = v
	}
	if flags.Changed("sources") {
		s, _ := flags.GetString("sources")
		names, err := source.ParseNames(s, source.DefaultRegistry().Names())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("--sources names no source")
		}
		cfg.Sources.SetEnabled(names)
	}
	if flags.Changed("cache") {
		b, _ := flags.GetString("cache")
		cfg.Cache.Backend = types.CacheBackend(b)
	}
	if flags.Changed("cache-path") {
		cfg.Cache.Path, _ = flags.GetString("cache-path")
		if !flags.Changed("cache") {
			cfg.Cache.Backend = types.CacheSQLite
		}
	}
	if flags.Changed("synonyms") {
		cfg.Similarity.SynonymsFile, _ = flags.GetString("synonyms")
	}
	return nil
}
