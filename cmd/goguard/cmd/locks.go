package cmd

import (
	"fmt"
	"net/http"

	"github.com/MrEthical07/goGuard/server"
	"github.com/spf13/cobra"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and edit the protected application set",
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List protected applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		var out server.LocksBody
		if err := c.do(cmd.Context(), http.MethodGet, "/v1/locks", nil, &out); err != nil {
			return err
		}
		for _, app := range out.Apps {
			fmt.Fprintln(cmd.OutOrStdout(), app)
		}
		return nil
	},
}

var locksAddCmd = &cobra.Command{
	Use:   "add APP...",
	Short: "Protect one or more applications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		for _, app := range args {
			if err := c.do(cmd.Context(), http.MethodPost, lockPath(app), nil, nil); err != nil {
				return err
			}
		}
		return nil
	},
}

var locksRemoveCmd = &cobra.Command{
	Use:     "remove APP...",
	Aliases: []string{"rm"},
	Short:   "Stop protecting applications and forget their grants",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		for _, app := range args {
			if err := c.do(cmd.Context(), http.MethodDelete, lockPath(app), nil, nil); err != nil {
				return err
			}
		}
		return nil
	},
}

var locksSetCmd = &cobra.Command{
	Use:   "set [APP...]",
	Short: "Replace the protected set. No arguments clears it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		apps := args
		if apps == nil {
			apps = []string{}
		}
		return c.do(cmd.Context(), http.MethodPut, "/v1/locks", server.LocksBody{Apps: apps}, nil)
	},
}

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage recent authentications",
}

var grantsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every grant so each protected app is challenged again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		return c.do(cmd.Context(), http.MethodDelete, "/v1/grants", nil, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{locksCmd, grantsCmd} {
		c.PersistentFlags().StringVar(&serverAddr, "addr", "", "Daemon address (defaults to the configured listen address)")
		rootCmd.AddCommand(c)
	}
	locksCmd.AddCommand(locksListCmd, locksAddCmd, locksRemoveCmd, locksSetCmd)
	grantsCmd.AddCommand(grantsClearCmd)
}
