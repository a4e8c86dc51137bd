package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Submit a Delete event for a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := model.ParseKey(args[0])
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			notices, err := app.Cards.Submit(context.Background(), eventlog.Delete, target, nil, actorFlag(app, ""))
			if err != nil {
				return err
			}
			printNotices(notices)
			return nil
		},
	}
}
