package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altovisual/artist-management-sub002/bootstrap"
	"github.com/altovisual/artist-management-sub002/service"
)

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <contract-id>",
		Short: "Render a contract and send it for signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Pipeline.StartSignature(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						*service.DispatchResult
						Warnings []string `json:"warnings,omitempty"`
					}{result, service.Warnings(result.Warnings)})
				}
				printDispatch(cmd, result)
				return nil
			})
		},
	}
}

func printDispatch(cmd *cobra.Command, result *service.DispatchResult) {
	out := cmd.OutOrStdout()
	if result.Replayed {
		fmt.Fprintln(out, "Unchanged contract; returning the previous dispatch")
	}
	fmt.Fprintf(out, "Document: %s\n", result.DocumentCode)
	fmt.Fprintf(out, "Session:  %s\n", result.SessionCode)
	if len(result.SignerIDs) > 0 {
		fmt.Fprintf(out, "Signers:  %s\n", strings.Join(result.SignerIDs, ", "))
	}
	if result.ArchiveURL != "" {
		fmt.Fprintf(out, "Archive:  %s\n", result.ArchiveURL)
	}
	for _, w := range service.Warnings(result.Warnings) {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}
