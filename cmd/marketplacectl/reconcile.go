package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matchbase/marketplace/internal/app"
	"github.com/matchbase/marketplace/internal/models"
)

func reconcileCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "reconcile [uid]",
		Short: "Prune stale ids from account lists",
		Long: `Without an argument every enabled account is reconciled. With a uid only
that account is, looked up in the collection named by --kind.

Examples:
  marketplacectl reconcile
  marketplacectl reconcile 7f3c --kind persons`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := models.AccountKind(kind)
			if !k.Valid() {
				return fmt.Errorf("unknown account kind %q", kind)
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				if len(args) == 0 {
					sum, err := a.Reconciler.ReconcileAll(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(sum)
				}
				rep, err := a.Reconciler.ReconcileAccount(cmd.Context(), k, args[0])
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(models.KindOrganization), "account collection of uid (companys, persons)")
	return cmd
}

func repairCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Replay failed projection writes recorded in the oplog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Writer.Repair(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 500, "maximum oplog entries to replay")
	return cmd
}
