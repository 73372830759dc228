// AngelaMos | 2026
// plans.go

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/usage"
)

var plansFormat string

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect plan catalogs",
}

var plansPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the configured catalog, or the built-in one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog := entitlements.DefaultCatalog()
		if configPath != "" {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if catalog, _, err = loadCatalog(cfg); err != nil {
				return err
			}
		}

		var out []byte
		var err error
		switch plansFormat {
		case "yaml":
			out, err = entitlements.MarshalCatalog(catalog)
		case "json":
			out, err = json.MarshalIndent(usage.ToPlanListResponse(catalog), "", "  ")
			out = append(out, '\n')
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", plansFormat)
		}
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var plansValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a catalog file for errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := entitlements.LoadCatalogFile(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d plans, top tier %s\n",
			args[0], len(catalog.Plans()), catalog.TopTier())
		return nil
	},
}

func init() {
	plansPrintCmd.Flags().StringVarP(&plansFormat, "format", "f", "yaml", "output format: yaml or json")
	plansCmd.AddCommand(plansPrintCmd, plansValidateCmd)
}
