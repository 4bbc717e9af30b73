package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "tally",
		Short: "AWS billable resource inventory",
		Long: `Tally - AWS billable resource inventory

Tally counts the billable resources across your AWS estate: virtual
machines, container hosts, serverless workloads, data stores and
container images. It fans out over accounts and regions with bounded
worker pools and writes per-category totals plus a full event log.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Tally {{.Version}} - AWS billable resource inventory
`)
}
