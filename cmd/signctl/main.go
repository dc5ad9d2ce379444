// Command signctl is the operator CLI for the signature ledger: it lists
// ledger rows and provider documents, reconciles the two, previews composed
// contracts and dispatches them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
