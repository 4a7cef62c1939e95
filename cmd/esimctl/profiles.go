package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/esimctl/internal/status"
)

// errSwitchFailed is returned when the host did not confirm a switch, so
// scripts see a non-zero exit.
var errSwitchFailed = errors.New("switch not confirmed")

func listCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List embedded SIM profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := a.svc.Profiles(cmd.Context())
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if profiles == nil {
					return enc.Encode([]any{})
				}
				return enc.Encode(profiles)
			}
			return status.WriteProfiles(a.stdout, profiles)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print profiles as JSON")
	return cmd
}

func activeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the active embedded SIM profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, ok := a.svc.Active(cmd.Context())
			if !ok {
				_, err := fmt.Fprintln(a.stdout, "no active eSIM profile")
				return err
			}
			_, err := fmt.Fprintln(a.stdout, status.DescribeProfile(p))
			return err
		},
	}
}

func switchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <subscription-id>",
		Short: "Make an embedded SIM profile active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", args[0])
			}

			res, err := a.svc.Switch(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, status.SummarizeAttempt(res.Attempt))
			if err := status.WriteProfiles(a.stdout, res.Profiles); err != nil {
				return err
			}
			if !res.Attempt.Success() {
				return errSwitchFailed
			}
			return nil
		},
	}
}
