package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/boundary"
)

func newExportCmd() *cobra.Command {
	var out string
	var snapshot bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the card event log (or a YAML snapshot) to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()

			if snapshot {
				return app.Cards.ExportSnapshot(f)
			}
			return app.Cards.ExportLog(f)
		},
	}
	cmd.Flags().StringVar(&out, "out", "cardledger-export.jsonl", "output file path")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "write a human-readable YAML snapshot instead of the JSONL event log")
	return cmd
}

func newImportCmd() *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Reconcile a JSONL event log export into the card ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := parseStrategy(strategyName)
			if err != nil {
				return err
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			return app.Cards.ImportLog(context.Background(), f, strategy, actorFlag(app, ""))
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", "fast-forward", "fast-forward|merge|reject")
	return cmd
}

func parseStrategy(name string) (boundary.ImportStrategy, error) {
	switch name {
	case "fast-forward":
		return boundary.FastForward, nil
	case "merge":
		return boundary.Merge, nil
	case "reject":
		return boundary.Reject, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q (want fast-forward|merge|reject)", name)
	}
}
