package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmskit",
	Short: "Headless CMS with typed custom fields and pluggable providers",
	Long: `cmskit serves collections of content items whose custom fields are
typed, validated and rendered from a single field-type table.

It runs self-hosted on SQLite and local disk, or hosted on Postgres and
S3 with a remote control plane for billing, analytics and video.

Quick start:
  cmskit serve              # Start the API server
  cmskit validate           # Validate the service configuration
  cmskit validate post.yaml # Validate a collection configuration
  cmskit field-types        # List the supported field types`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "cmskit.yaml", "config file path")
}
