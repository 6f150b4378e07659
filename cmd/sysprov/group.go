package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tunonalves/sysprov/internal/accounts"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage local groups",
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := accounts.OpenHostDB()
		if err != nil {
			return err
		}
		groups, err := dir.Groups()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tGID\tMEMBERS")
		for _, g := range groups {
			fmt.Fprintf(w, "%s\t%d\t%s\n", g.Name, g.GID, strings.Join(g.Members, ","))
		}
		return w.Flush()
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := accounts.NewHostManager()
		if err != nil {
			return err
		}
		g, err := mgr.CreateGroup(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created group %s (gid %d)\n", g.Name, g.GID)
		return nil
	},
}

var groupDelCmd = &cobra.Command{
	Use:   "del <name>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := accounts.NewHostManager()
		if err != nil {
			return err
		}
		if err := mgr.DeleteGroup(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted group %s\n", args[0])
		return nil
	},
}

var groupMembersCmd = &cobra.Command{
	Use:   "members <group> [user]",
	Short: "List a group's resolved members, or add a user to the group",
	Long: `With one argument, lists the group's resolved membership: explicit
members plus accounts whose primary group matches. With two arguments,
adds the user to the group.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			mgr, err := accounts.NewHostManager()
			if err != nil {
				return err
			}
			if err := mgr.AddMember(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("added %s to %s\n", args[1], args[0])
			return nil
		}

		dir, err := accounts.OpenHostDB()
		if err != nil {
			return err
		}
		g, err := dir.LookupGroup(args[0])
		if err != nil {
			return err
		}
		byGID, err := dir.LoginsByPrimaryGID(g.GID)
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, l := range append(append([]string{}, g.Members...), byGID...) {
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupDelCmd)
	groupCmd.AddCommand(groupMembersCmd)
}
