package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/altovisual/artist-management-sub002/bootstrap"
	"github.com/altovisual/artist-management-sub002/service"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [document-code...]",
		Short: "Merge provider signer state into the local ledger",
		Long:  "Reconcile inserts missing ledger rows and updates statuses from the provider. It never deletes rows. With no codes every provider document is reconciled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				report, err := app.Reconciler.Reconcile(cmd.Context(), service.ReconcileOptions{DocumentCodes: args})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				printReport(cmd, report)
				return nil
			})
		},
	}
}

func printReport(cmd *cobra.Command, report *service.ReconcileReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Documents", "Inserted", "Updated", "Unchanged", "Skipped"},
		[][]string{{
			strconv.Itoa(report.Documents),
			strconv.Itoa(report.Inserted),
			strconv.Itoa(report.Updated),
			strconv.Itoa(report.Unchanged),
			strconv.Itoa(report.Skipped),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	for _, e := range report.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
}
