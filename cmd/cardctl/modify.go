package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/card"
	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
)

func newModifyCmd() *cobra.Command {
	var (
		setFront   string
		setBack    string
		addDep     string
		removeDep  string
		suspend    bool
		unsuspend  bool
		trivial    bool
		untrivial  bool
		finishKind string
	)

	cmd := &cobra.Command{
		Use:   "modify <key>",
		Short: "Submit a Modify event against an existing card",
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

			actions, err := buildModifyActions(setFront, setBack, addDep, removeDep, suspend, unsuspend, trivial, untrivial, finishKind)
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				return fmt.Errorf("no modifications given")
			}

			ctx := context.Background()
			var allNotices []string
			for _, action := range actions {
				notices, err := app.Cards.Submit(ctx, eventlog.Modify, target, action, actorFlag(app, ""))
				if err != nil {
					return err
				}
				for _, n := range notices {
					allNotices = append(allNotices, n.Key.String()+": "+n.Status.Reason)
				}
			}
			for _, n := range allNotices {
				fmt.Println("cascade notice:", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&setFront, "set-front", "", "replace the front text")
	cmd.Flags().StringVar(&setBack, "set-back", "", "replace the back text")
	cmd.Flags().StringVar(&addDep, "add-dep", "", "add an explicit dependency on the given key")
	cmd.Flags().StringVar(&removeDep, "remove-dep", "", "remove an explicit dependency on the given key")
	cmd.Flags().BoolVar(&suspend, "suspend", false, "suspend the card")
	cmd.Flags().BoolVar(&unsuspend, "unsuspend", false, "unsuspend the card")
	cmd.Flags().BoolVar(&trivial, "trivial", false, "mark the card trivial")
	cmd.Flags().BoolVar(&untrivial, "untrivial", false, "unmark the card trivial")
	cmd.Flags().StringVar(&finishKind, "finish", "", "transition an unfinished card to the given kind")

	return cmd
}

func buildModifyActions(setFront, setBack, addDep, removeDep string, suspend, unsuspend, trivial, untrivial bool, finishKind string) ([]card.Action, error) {
	var actions []card.Action

	if setFront != "" {
		actions = append(actions, card.Action{Kind: card.SetFront, Front: setFront})
	}
	if setBack != "" {
		actions = append(actions, card.Action{Kind: card.SetBack, Back: card.BackSide{Kind: card.BackText, Text: setBack}})
	}
	if addDep != "" {
		k, err := model.ParseKey(addDep)
		if err != nil {
			return nil, fmt.Errorf("--add-dep: %w", err)
		}
		actions = append(actions, card.Action{Kind: card.AddExplicitDep, Dep: k})
	}
	if removeDep != "" {
		k, err := model.ParseKey(removeDep)
		if err != nil {
			return nil, fmt.Errorf("--remove-dep: %w", err)
		}
		actions = append(actions, card.Action{Kind: card.RemoveExplicitDep, Dep: k})
	}
	if suspend {
		actions = append(actions, card.Action{Kind: card.SetSuspended, Suspended: true})
	}
	if unsuspend {
		actions = append(actions, card.Action{Kind: card.SetSuspended, Suspended: false})
	}
	if trivial {
		actions = append(actions, card.Action{Kind: card.SetTrivial, Trivial: true})
	}
	if untrivial {
		actions = append(actions, card.Action{Kind: card.SetTrivial, Trivial: false})
	}
	if finishKind != "" {
		kind, err := parseTerminalKind(finishKind)
		if err != nil {
			return nil, err
		}
		actions = append(actions, card.Action{Kind: card.Finish, FinishKind: kind})
	}
	return actions, nil
}

func parseTerminalKind(s string) (card.Kind, error) {
	switch s {
	case "normal":
		return card.Normal, nil
	case "class":
		return card.Class, nil
	case "instance":
		return card.Instance, nil
	case "attribute-answer":
		return card.AttributeAnswer, nil
	case "statement":
		return card.Statement, nil
	default:
		return 0, fmt.Errorf("unknown finish kind %q", s)
	}
}
