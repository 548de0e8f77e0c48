// Package config holds the assembled, validated configuration for an
// audit run, built entirely from CLI flags. There is no on-disk
// configuration file format in this tool.
package config

import (
	"fmt"
	"os"

	"github.com/smarttechnologies/macho-report/internal/discover"
)

// Config is the full set of flags an audit run needs.
type Config struct {
	// Targets is the list of target groups to discover roots from.
	// Populated from repeated --package and --file flags by
	// cmd/audit.go.
	Targets []discover.TargetGroup

	// ExclusionsFile is the path to a one-regex-per-line exclusions
	// file, or empty if none was given.
	ExclusionsFile string

	// IgnoreSystem suppresses traversal into /usr/lib and
	// /System/Library dependencies.
	IgnoreSystem bool

	// Workers is the traversal engine's parallelism. Defaults to 200;
	// workers spend their time blocked on stat and parse I/O, so the
	// pool runs far wider than GOMAXPROCS.
	Workers int

	// Verbosity gates internal/auditlog's info/debug output.
	Verbosity int

	// JSONOut, if non-empty, is a path to write the report as JSON.
	JSONOut string
}

const defaultWorkers = 200

// Validate checks Config eagerly, at setup time: an unreadable
// exclusions file or target path must fail before traversal starts,
// not partway through it.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets given: pass --package or --file at least once")
	}

	for _, tg := range c.Targets {
		for _, p := range tg.Paths {
			if _, err := os.Stat(p); err != nil {
				return fmt.Errorf("target path %s: %w", p, err)
			}
		}
	}

	if c.ExclusionsFile != "" {
		if _, err := os.Stat(c.ExclusionsFile); err != nil {
			return fmt.Errorf("exclusions file %s: %w", c.ExclusionsFile, err)
		}
	}

	return nil
}
