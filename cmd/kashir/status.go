package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a sign-in is stored",
		Long: `Report whether a refresh token is stored. The token is not checked
against the identity provider; use "kashir profile" for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if s.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "connected")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not connected")
			}
			return nil
		},
	}
}
