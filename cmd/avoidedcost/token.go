package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/avoidedcost/internal/auth"
	"github.com/bher20/avoidedcost/pkg/utilities"
)

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var role, expires string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a token and print its secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exp, err := auth.ParseExpirationDuration(expires)
			if err != nil {
				return err
			}
			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			svc, err := auth.NewService(ctx, st)
			if err != nil {
				return err
			}
			t, raw, err := svc.CreateToken(ctx, args[0], role, exp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:     %s\nrole:   %s\ntoken:  %s\n", t.ID, t.Role, raw)
			return nil
		},
	}
	create.Flags().StringVar(&role, "role", auth.RoleViewer, "admin, analyst or viewer")
	create.Flags().StringVar(&expires, "expires", "never", "lifetime such as 30d, 12h, 12/25/2026 or never")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			svc, err := auth.NewService(ctx, st)
			if err != nil {
				return err
			}
			tokens, err := svc.ListTokens(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tROLE\tCREATED\tEXPIRES\tLAST USED")
			for _, t := range tokens {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Role,
					t.CreatedAt.Format(time.RFC3339), optTime(t.ExpiresAt), optTime(t.LastUsedAt))
			}
			return tw.Flush()
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			svc, err := auth.NewService(ctx, st)
			if err != nil {
				return err
			}
			return svc.RevokeToken(ctx, args[0])
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func optTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func utilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "utilities [KEY...]",
		Short: "List known utilities and their therms profile adjustments",
		RunE: func(cmd *cobra.Command, args []string) error {
			list := utilities.All()
			if len(args) > 0 {
				list = list[:0]
				for _, key := range args {
					u, err := utilities.Lookup(key)
					if err != nil {
						return err
					}
					list = append(list, u)
				}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tANNUAL\tSUMMER\tWINTER")
			for _, u := range list {
				adj := u.ThermsProfileAdjustments
				fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\n", u.Key, u.Name, adj["annual"], adj["summer"], adj["winter"])
			}
			return tw.Flush()
		},
	}
}
