package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/ledger"
	"github.com/speki-dev/cardledger/internal/model"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a card's current form and validation status",
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

			item, ok := app.Cards.Get(target)
			if !ok {
				return fmt.Errorf("no such card: %s", target)
			}
			encoded, err := json.MarshalIndent(item, "", "  ")
			if err != nil {
				return fmt.Errorf("encode card: %w", err)
			}
			fmt.Println(string(encoded))

			if status, ok := app.Cards.Engine.ValidationStatus(target); ok && !status.Valid {
				fmt.Println("invalid:", status.Reason)
			}
			return nil
		},
	}
}

func printNotices(notices []ledger.CascadeNotice) {
	for _, n := range notices {
		fmt.Println("cascade notice:", n.Key.String()+":", n.Status.Reason)
	}
}
