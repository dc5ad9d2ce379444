package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altovisual/artist-management-sub002/bootstrap"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "preview <contract-id>",
		Short: "Print the composed contract HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				html, err := app.Pipeline.Preview(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if outPath == "" {
					_, err := fmt.Fprint(cmd.OutOrStdout(), html)
					return err
				}
				if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
					return fmt.Errorf("write preview: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s\n", outPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the HTML to a file")
	return cmd
}
