// Package cmd implements the command-line front end.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "macho-report",
	Short: "Audit Mach-O binaries for unresolved dynamic-library dependencies",
	Long: "macho-report parses Mach-O executables and dynamic libraries, resolves\n" +
		"every @loader_path/@executable_path/@rpath dependency reference against\n" +
		"disk, and reports which references are missing.",
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process with status 1 on
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
