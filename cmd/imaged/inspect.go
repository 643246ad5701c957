package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"imaged/internal/params"
	"imaged/internal/presets"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the effective parameter template as JSON",
	Long:  `Print the parameter template after template_overrides from the config are applied.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tmpl, err := cfg.Template()
		if err != nil {
			return err
		}
		return printJSON(cmd, tmpl)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the parameter template",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, params.Schema())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and preset files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tmpl, err := cfg.Template()
		if err != nil {
			return err
		}
		n := 0
		if cfg.PresetsDir != "" {
			set, err := presets.LoadDir(cfg.PresetsDir)
			if err != nil {
				return err
			}
			for _, name := range set.Names() {
				p, _ := set.Lookup(name)
				if _, err := tmpl.Overlay(p.Overrides); err != nil {
					return fmt.Errorf("preset %s (%s): %w", name, p.Path, err)
				}
			}
			n = len(set)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config ok (worker %s, %d presets)\n", cfg.WorkerURL, n)
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
