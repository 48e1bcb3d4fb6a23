package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/djinn/kashir/internal/domain"
)

func newProfileCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Resolve and print the Minecraft profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			p, err := s.ResolveProfile(cmd.Context())
			if err != nil {
				return err
			}
			return printProfile(cmd.OutOrStdout(), p, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the profile as JSON")
	return cmd
}

func printProfile(w io.Writer, p domain.Profile, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	fmt.Fprintf(w, "name: %s\n", p.DisplayName)
	fmt.Fprintf(w, "id:   %s\n", p.ID)
	if p.HasSkin() {
		fmt.Fprintf(w, "skin: %s\n", p.SkinURL)
	}
	return nil
}
