package main

import (
	"context"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
	"github.com/speki-dev/cardledger/internal/review"
)

// newReviewCmd manages the adjacent review-data category (§4.G). It
// accepts a natural-language time expression for --at via
// github.com/olebedev/when.
func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Record review outcomes against the review-data ledger",
	}
	cmd.AddCommand(newReviewRecordCmd())
	return cmd
}

func newReviewRecordCmd() *cobra.Command {
	var (
		cardKeyArg   string
		grade        int
		ease         float64
		intervalDays int
		at           string
	)

	cmd := &cobra.Command{
		Use:   "record <review-key>",
		Short: "Record an outcome for an existing review record (create one first if needed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := model.ParseKey(args[0])
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}

			reviewedAt := time.Now()
			if at != "" {
				w := when.New(nil)
				w.Add(en.All...)
				w.Add(common.All...)
				result, err := w.Parse(at, time.Now())
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				if result != nil {
					reviewedAt = result.Time
				}
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if _, ok := app.Reviews.Get(target); !ok {
				if cardKeyArg == "" {
					return fmt.Errorf("no review record %s exists yet; pass --card to create one", target)
				}
				cardKey, err := model.ParseKey(cardKeyArg)
				if err != nil {
					return fmt.Errorf("--card: %w", err)
				}
				create := review.RecordAction{Kind: review.CreateRecord, CardKey: cardKey}
				if _, err := app.Reviews.Submit(context.Background(), eventlog.Create, target, create, actorFlag(app, "")); err != nil {
					return fmt.Errorf("create review record: %w", err)
				}
			}

			action := review.RecordAction{
				Kind:         review.RecordOutcome,
				Grade:        grade,
				ReviewedAt:   reviewedAt.UnixNano(),
				EaseFactor:   ease,
				IntervalDays: intervalDays,
			}
			_, err = app.Reviews.Submit(context.Background(), eventlog.Modify, target, action, actorFlag(app, ""))
			return err
		},
	}

	cmd.Flags().StringVar(&cardKeyArg, "card", "", "card key this review record concerns (only used when creating)")
	cmd.Flags().IntVar(&grade, "grade", 0, "recall quality, caller-defined scale")
	cmd.Flags().Float64Var(&ease, "ease", 2.5, "ease factor to record")
	cmd.Flags().IntVar(&intervalDays, "interval-days", 1, "interval in days to record")
	cmd.Flags().StringVar(&at, "at", "", "natural-language review time, e.g. \"yesterday at 6pm\" (default: now)")

	return cmd
}
