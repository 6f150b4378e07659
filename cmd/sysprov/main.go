package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

var hostRoot string

// rootCmd is the entry point for the sysprov command tree.
var rootCmd = &cobra.Command{
	Use:   "sysprov",
	Short: "Provision SSH keys and manage accounts on the local host",
	Long: `sysprov manages local accounts and their SSH access:
  - generate and authorize SSH keypairs for users and groups
  - add and remove users and groups
  - adjust file modes and ownership
  - report host resource usage`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		hostfs.SetRoot(hostRoot)
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&hostRoot, "host-root", "/", "mount point of the managed host filesystem")

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(permsCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
