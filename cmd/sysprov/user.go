package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/auth"
)

var (
	userPassword   string
	userHome       string
	userShell      string
	userSudo       bool
	userGroups     []string
	userCreateHome bool
	userRemoveHome bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local user accounts",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := accounts.OpenHostDB()
		if err != nil {
			return err
		}
		users, err := dir.Users()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tUID\tGID\tHOME\tSHELL")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", u.Name, u.UID, u.GID, u.Home, u.Shell)
		}
		return w.Flush()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := accounts.NewHostManager()
		if err != nil {
			return err
		}
		hash := ""
		if userPassword != "" {
			hash, err = auth.HashPassword(userPassword)
			if err != nil {
				return err
			}
		}
		err = mgr.CreateUser(accounts.CreateUserRequest{
			Username:     args[0],
			PasswordHash: hash,
			Home:         userHome,
			Shell:        userShell,
			AddToSudo:    userSudo,
			ExtraGroups:  userGroups,
			CreateHome:   userCreateHome,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created user %s\n", args[0])
		return nil
	},
}

var userDelCmd = &cobra.Command{
	Use:   "del <name>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := accounts.NewHostManager()
		if err != nil {
			return err
		}
		if err := mgr.DeleteUser(args[0], userRemoveHome); err != nil {
			return err
		}
		fmt.Printf("deleted user %s\n", args[0])
		return nil
	},
}

var userShellCmd = &cobra.Command{
	Use:   "shell <name> <shell>",
	Short: "Change a user's login shell",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := accounts.NewHostManager()
		if err != nil {
			return err
		}
		if err := mgr.SetShell(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("set shell %s for %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "initial password (hashed before storage)")
	userAddCmd.Flags().StringVar(&userHome, "home", "", "home directory (default /home/<name>)")
	userAddCmd.Flags().StringVar(&userShell, "shell", "", "login shell (default /bin/bash)")
	userAddCmd.Flags().BoolVar(&userSudo, "sudo", false, "add to the sudo group")
	userAddCmd.Flags().StringSliceVar(&userGroups, "groups", nil, "extra groups to join")
	userAddCmd.Flags().BoolVar(&userCreateHome, "create-home", true, "create the home directory")
	userDelCmd.Flags().BoolVar(&userRemoveHome, "remove-home", false, "also remove the home directory")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDelCmd)
	userCmd.AddCommand(userShellCmd)
}
