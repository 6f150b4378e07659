package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/provision"
	"github.com/tunonalves/sysprov/internal/sshkey"
)

var (
	keyBits    int
	keyTimeout time.Duration
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Ensure accounts have SSH keypairs and authorized_keys entries",
}

var keysUserCmd = &cobra.Command{
	Use:   "user <login>...",
	Short: "Provision SSH keys for one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		failed := 0
		for _, login := range args {
			out := p.ProvisionUser(context.Background(), login)
			printOutcome(out)
			if !out.OK() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d accounts failed", failed, len(args))
		}
		return nil
	},
}

var keysGroupCmd = &cobra.Command{
	Use:   "group <name>",
	Short: "Provision SSH keys for every member of a group",
	Long: `Resolves the group's membership (explicit members plus accounts whose
primary group matches) and provisions each account. A failing account
does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		outcomes, err := p.ProvisionGroup(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			fmt.Printf("group %s has no members\n", args[0])
			return nil
		}
		failed := 0
		for _, out := range outcomes {
			printOutcome(out)
			if !out.OK() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d accounts failed", failed, len(outcomes))
		}
		return nil
	},
}

func newProvisioner() (*provision.Provisioner, error) {
	dir, err := accounts.OpenHostDB()
	if err != nil {
		return nil, err
	}
	gen := sshkey.Generator{}
	if keyBits > 0 {
		gen.Bits = keyBits
	}
	p := provision.New(dir, gen)
	if keyTimeout > 0 {
		p.KeyTimeout = keyTimeout
	}
	return p, nil
}

func printOutcome(out provision.Outcome) {
	switch {
	case !out.OK():
		fmt.Printf("%s: FAILED: %v\n", out.Login, out.Err)
	case out.Generated && out.KeyAdded:
		fmt.Printf("%s: generated keypair, key authorized in %s\n", out.Login, out.AuthorizedKeys)
	case out.Generated:
		fmt.Printf("%s: generated keypair, key already authorized\n", out.Login)
	case out.KeyAdded:
		fmt.Printf("%s: existing keypair, key authorized in %s\n", out.Login, out.AuthorizedKeys)
	default:
		fmt.Printf("%s: nothing to do\n", out.Login)
	}
}

func init() {
	keysCmd.PersistentFlags().IntVar(&keyBits, "bits", 0, "RSA key size (default 4096)")
	keysCmd.PersistentFlags().DurationVar(&keyTimeout, "timeout", 0, "per-key generation timeout (default 30s)")
	keysCmd.AddCommand(keysUserCmd)
	keysCmd.AddCommand(keysGroupCmd)
}
