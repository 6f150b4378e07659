package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/sysreport"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a one-shot system resource report",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := accounts.OpenHostDB()
		if err != nil {
			return err
		}
		coll := sysreport.NewCollector("", dir.PasswdPath)
		cfg := sysreport.DefaultConfig()
		cfg.CollectFilesystem = true
		rep, err := coll.Report(cfg)
		if err != nil {
			return err
		}
		if reportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		enc := yaml.NewEncoder(os.Stdout)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON instead of YAML")
}
