package main

import (
	"log"
	"os"
	"runtime/debug"

	"github.com/smarttechnologies/macho-report/cmd"
)

func main() {
	// A wide traversal builds a large working set of in-flight Mach-O
	// parses; collect more aggressively unless the user has tuned GOGC
	// themselves.
	if _, gogcSet := os.LookupEnv("GOGC"); !gogcSet {
		debug.SetGCPercent(25)
	}

	log.SetFlags(log.Lmicroseconds | log.Lshortfile)

	cmd.Execute()
}
