package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/cmskit/config"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:   "validate [collection-file]",
	Short: "Validate the service configuration or a collection configuration",
	Long: `Validate the cmskit configuration file, or, when a file is given,
a collection configuration in YAML or JSON.

A collection configuration has the same shape as the API document:

  customFields:
    - label: Status
      type: select
      options:
        - type: choices
          value: [{label: Draft, value: draft}]
  builtInFields:
    tags: {visible: false}

Examples:
  cmskit validate
  cmskit validate --config /etc/cmskit/config.yaml
  cmskit validate collections/posts.yaml
  cmskit validate collections/posts.json --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateJSON bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the collection validation result as JSON")
}

// errInvalid is returned after the issues have been printed.
var errInvalid = errors.New("validation failed")

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return validateCollectionFile(out, args[0], validateJSON)
	}
	return validateServiceConfig(out, cfgFile)
}

func validateServiceConfig(out io.Writer, path string) error {
	fmt.Fprintf(out, "Validating %s...\n\n", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", path)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Mode: %s\n", checkMark, cfg.Mode)
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.Driver)
	fmt.Fprintf(out, "  %s Cache: %s\n", checkMark, cfg.Cache.Provider)
	fmt.Fprintf(out, "  %s Media: %s\n", checkMark, cfg.Media.Provider)
	fmt.Fprintf(out, "  %s Analytics: %s\n", checkMark, cfg.Analytics.Provider)
	fmt.Fprintf(out, "  %s Video: %s\n", checkMark, cfg.Video.Provider)
	for _, w := range cfg.Warnings {
		fmt.Fprintf(out, "  %s %s\n", warnMark, w)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func validateCollectionFile(out io.Writer, path string, asJSON bool) error {
	cfg, err := readCollectionConfig(path)
	if err != nil {
		return err
	}
	res := collection.Validate(cfg)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(out, path, cfg, res)
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func printResult(out io.Writer, path string, cfg collection.Config, res field.Result) {
	fmt.Fprintf(out, "Validating %s...\n\n", path)
	for _, i := range res.Issues {
		fmt.Fprintf(out, "  %s %s\n", crossMark, i.Error())
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  %s %s\n", warnMark, w.Error())
	}
	fmt.Fprintln(out)
	if res.Valid {
		fmt.Fprintf(out, "Collection configuration is valid (%d custom fields).\n", len(cfg.CustomFields))
		return
	}
	fmt.Fprintf(out, "Collection configuration has %d issue(s).\n", len(res.Issues))
}

// readCollectionConfig decodes a collection configuration. YAML is
// converted to JSON first so options decode through the same registry as
// API requests.
func readCollectionConfig(path string) (collection.Config, error) {
	var cfg collection.Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return cfg, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)
