package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smarttechnologies/macho-report/internal/audit"
	"github.com/smarttechnologies/macho-report/internal/auditlog"
	"github.com/smarttechnologies/macho-report/internal/config"
	"github.com/smarttechnologies/macho-report/internal/discover"
	"github.com/smarttechnologies/macho-report/internal/engine"
	"github.com/smarttechnologies/macho-report/internal/repr"
)

// maxMissingInSummary bounds how many missing descriptors the
// human-readable summary prints per root before eliding the rest.
const maxMissingInSummary = 5

var (
	flagPackages     []string
	flagFiles        []string
	flagExclusions   string
	flagIgnoreSystem bool
	flagWorkers      int
	flagVerbose      int
	flagJSONOut      string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Discover root binaries and audit their dependency closure",
	Example: "  macho-report audit --package com.example.foo --exclusions exclusions.txt\n" +
		"  macho-report audit --file /usr/local/bin/mytool --ignore-system",
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringArrayVar(&flagPackages, "package", nil,
		"Package identifier, optionally with extra paths as id=path[,path...] (repeatable)")
	auditCmd.Flags().StringArrayVar(&flagFiles, "file", nil,
		"Explicit root file or directory to audit (repeatable)")
	auditCmd.Flags().StringVar(&flagExclusions, "exclusions", "",
		"Path to a file of exclusion regexes, one per line")
	auditCmd.Flags().BoolVar(&flagIgnoreSystem, "ignore-system", false,
		"Do not traverse into /usr/lib or /System/Library dependencies")
	auditCmd.Flags().IntVar(&flagWorkers, "workers", 0,
		"Traversal parallelism (default: a few hundred)")
	auditCmd.Flags().CountVarP(&flagVerbose, "verbose", "v",
		"Increase logging verbosity (repeatable)")
	auditCmd.Flags().StringVar(&flagJSONOut, "json", "",
		"Write the report as JSON to this path")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	targets, err := buildTargets(flagPackages, flagFiles)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Targets:        targets,
		ExclusionsFile: flagExclusions,
		IgnoreSystem:   flagIgnoreSystem,
		Workers:        flagWorkers,
		Verbosity:      flagVerbose,
		JSONOut:        flagJSONOut,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := auditlog.Default(cfg.Verbosity)

	report, err := audit.Run(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	printSummary(report, log)

	if cfg.JSONOut != "" {
		data, err := repr.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		if err := os.WriteFile(cfg.JSONOut, data, 0o644); err != nil {
			return fmt.Errorf("writing report to %s: %w", cfg.JSONOut, err)
		}
		log.Infof("wrote JSON report to %s", cfg.JSONOut)
	}

	return nil
}

// buildTargets parses --package entries (a bare identifier, or
// id=path[,path...] with extra paths to walk alongside the package's
// own file list) and groups --file entries into a single unlabeled
// target group.
func buildTargets(packages, files []string) ([]discover.TargetGroup, error) {
	var targets []discover.TargetGroup

	for _, p := range packages {
		id, pathList, hasPaths := strings.Cut(p, "=")
		if id == "" {
			return nil, fmt.Errorf("--package value %q must be id or id=path[,path...]", p)
		}
		tg := discover.TargetGroup{Package: id}
		if hasPaths && pathList != "" {
			tg.Paths = strings.Split(pathList, ",")
		}
		targets = append(targets, tg)
	}

	if len(files) > 0 {
		targets = append(targets, discover.TargetGroup{Paths: files})
	}

	return targets, nil
}

// printSummary writes one flat status line per root:
// satisfied/unsatisfied, and the first few missing descriptors.
func printSummary(report *engine.Report, log *auditlog.Logger) {
	for _, group := range report.Groups {
		for _, root := range group.Roots {
			status := "satisfied"
			if !root.Satisfied {
				status = "UNSATISFIED"
			}

			line := fmt.Sprintf("%s: %s", root.Path, status)
			if pkg := root.Package; pkg != "" {
				line = fmt.Sprintf("[%s] %s", pkg, line)
			}
			if !root.Parsed {
				line += " (parse failed)"
			}

			for i, m := range root.Missing {
				if i >= maxMissingInSummary {
					line += fmt.Sprintf(" (+%d more)", len(root.Missing)-maxMissingInSummary)
					break
				}
				name := m.Dependency.Name
				if name == "" {
					name = m.Dependency.Path
				}
				line += fmt.Sprintf(" missing=%s", name)
			}

			log.Statusf("%s", line)
		}
	}
}
