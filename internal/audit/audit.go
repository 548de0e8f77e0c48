// Package audit wires discovery, the traversal engine, the
// satisfiability pass, and report projection together behind a single
// Run entry point. It also raises RLIMIT_NOFILE, since a traversal that
// opens thousands of dylibs concurrently can otherwise hit EMFILE.
package audit

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/smarttechnologies/macho-report/internal/auditlog"
	"github.com/smarttechnologies/macho-report/internal/config"
	"github.com/smarttechnologies/macho-report/internal/discover"
	"github.com/smarttechnologies/macho-report/internal/engine"
	"github.com/smarttechnologies/macho-report/internal/exclude"
	"github.com/smarttechnologies/macho-report/internal/node"
)

// Run executes one full audit: discovery, traversal, satisfiability,
// and report projection, in that order.
func Run(ctx context.Context, cfg *config.Config, log *auditlog.Logger) (*engine.Report, error) {
	if err := raiseRlimit(); err != nil {
		log.Errorf("raising RLIMIT_NOFILE: %v (continuing anyway)", err)
	}

	// Exclusion regex compilation is a setup-time error, so it happens
	// before any traversal work begins.
	var exclusions []*exclude.Exclusion
	if cfg.ExclusionsFile != "" {
		var err error
		exclusions, err = exclude.Load(cfg.ExclusionsFile)
		if err != nil {
			return nil, fmt.Errorf("loading exclusions: %w", err)
		}
	}

	tgs := make([]discover.TargetGroup, len(cfg.Targets))
	copy(tgs, cfg.Targets)

	roots, err := discover.Roots(ctx, tgs)
	if err != nil {
		return nil, fmt.Errorf("discovering roots: %w", err)
	}
	log.Infof("discovered %d root binaries", len(roots))

	cache := node.NewCache()
	processor := &engine.MachoProcessor{IgnoreSystem: cfg.IgnoreSystem}

	// The progress ticker lives outside the traversal's own lifetime
	// management: it must keep printing while workers run and stop as
	// soon as they return, whether they returned cleanly or not.
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		if log.Verbosity >= 1 {
			reportProgress(progressCtx, cache, log)
		}
	}()

	runErr := engine.Run(ctx, roots, cfg.Workers, cache, processor)
	stopProgress()
	<-progressDone
	if runErr != nil {
		return nil, fmt.Errorf("traversal: %w", runErr)
	}

	for _, n := range cache.Nodes() {
		if n.Exists && !n.Parsed {
			log.Errorf("failed to parse Mach-O %s", n.Path)
		}
	}

	engine.Satisfiability(cache, exclusions)

	return engine.Project(cache), nil
}

// reportProgress prints a node-count status line every two seconds
// until ctx is done, skipping ticks where the count hasn't moved.
func reportProgress(ctx context.Context, cache *node.Cache, log *auditlog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastCount := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := cache.Len()
			if n != lastCount {
				lastCount = n
				log.Infof("%d nodes processed so far", n)
			}
		}
	}
}

// raiseRlimit raises RLIMIT_NOFILE to its hard limit so a wide
// traversal doesn't hit "too many open files".
func raiseRlimit() error {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("Getrlimit: %w", err)
	}

	rlimit.Cur = rlimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("Setrlimit: %w", err)
	}

	return nil
}
