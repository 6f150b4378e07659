package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunonalves/sysprov/internal/usercmd"
)

var permsCmd = &cobra.Command{
	Use:   "perms",
	Short: "Adjust file modes and ownership",
}

var permsModeCmd = &cobra.Command{
	Use:   "mode <mode> <path>",
	Short: "Apply a chmod mode (octal or symbolic) to a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := usercmd.New().Chmod(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("set mode %s on %s\n", args[0], args[1])
		return nil
	},
}

var permsOwnerCmd = &cobra.Command{
	Use:   "owner <user[:group]> <path>",
	Short: "Apply a chown spec to a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := usercmd.New().Chown(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("set owner %s on %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	permsCmd.AddCommand(permsModeCmd)
	permsCmd.AddCommand(permsOwnerCmd)
}
