package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/service"
)

func newDocumentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List documents held by the signature provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := ctx.provider()
			if err != nil {
				return err
			}
			docs, err := provider.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, docs)
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "Provider documents: none")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Code", "Name", "Status", "Signers", "Signed", "Created"},
				documentRows(docs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func documentRows(docs []service.ProviderDocument) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		signed := 0
		for _, s := range d.Signers {
			if model.MapProviderStatus(s.Status) == model.SignatureCompleted {
				signed++
			}
		}
		rows = append(rows, []string{
			d.Code,
			d.Name,
			d.Status,
			strconv.Itoa(len(d.Signers)),
			strconv.Itoa(signed),
			d.CreatedAt,
		})
	}
	return rows
}
