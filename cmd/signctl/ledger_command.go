package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altovisual/artist-management-sub002/bootstrap"
	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/service"
)

const stampLayout = "2006-01-02 15:04"

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var filter service.SignatureFilter

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List signature ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				entries, err := app.Reconciler.LocalEntries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				printLedger(cmd, entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.ContractID, "contract", "", "Only entries of this contract")
	cmd.Flags().StringVar(&filter.DocumentCode, "document", "", "Only entries of this provider document")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "Maximum entries to list (0 for all)")

	return cmd
}

func printLedger(cmd *cobra.Command, entries []model.SignatureEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "Ledger entries: none")
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Contract", "Document", "Signer", "Status", "Updated"},
		ledgerRows(entries),
		[]columnAlignment{alignRight},
	))
}

func ledgerRows(entries []model.SignatureEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		contract := "-"
		if e.ContractID != nil {
			contract = *e.ContractID
		}
		signer := e.SignerEmail
		if name := strings.TrimSpace(e.SignerName); name != "" {
			signer = fmt.Sprintf("%s <%s>", name, e.SignerEmail)
		}
		stamp := e.CreatedAt
		if e.UpdatedAt != nil {
			stamp = *e.UpdatedAt
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			contract,
			e.DocumentCode,
			signer,
			e.Status,
			stamp.Local().Format(stampLayout),
		})
	}
	return rows
}
