package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/card"
	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
)

func newCreateCmd() *cobra.Command {
	var (
		front       string
		backText    string
		classOf     string
		parentClass string
		namespace   string
		unfinished  bool
	)

	cmd := &cobra.Command{
		Use:   "create <kind> [--front TEXT] [--back TEXT]",
		Short: "Submit a Create event for a new card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			action := card.Action{Front: front, Back: card.BackSide{Kind: card.BackText, Text: backText}}
			if classOf != "" {
				k, err := model.ParseKey(classOf)
				if err != nil {
					return fmt.Errorf("--class-of: %w", err)
				}
				action.ClassOf = k
			}
			if parentClass != "" {
				k, err := model.ParseKey(parentClass)
				if err != nil {
					return fmt.Errorf("--parent-class: %w", err)
				}
				action.ParentClass = k
			}
			if namespace != "" {
				k, err := model.ParseKey(namespace)
				if err != nil {
					return fmt.Errorf("--namespace: %w", err)
				}
				action.Namespace = k
			}

			switch {
			case unfinished:
				action.Kind = card.CreateUnfinished
			default:
				kindArg, err := parseCreateKind(args[0])
				if err != nil {
					return err
				}
				action.Kind = kindArg
			}

			target := model.NewKey()
			notices, err := app.Cards.Submit(context.Background(), eventlog.Create, target, action, actorFlag(app, ""))
			if err != nil {
				return err
			}
			fmt.Println(target.String())
			printNotices(notices)
			return nil
		},
	}

	cmd.Flags().StringVar(&front, "front", "", "front text")
	cmd.Flags().StringVar(&backText, "back", "", "back text")
	cmd.Flags().StringVar(&classOf, "class-of", "", "key of the class this instance belongs to")
	cmd.Flags().StringVar(&parentClass, "parent-class", "", "key of this class's superclass")
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace key")
	cmd.Flags().BoolVar(&unfinished, "unfinished", false, "create as unfinished, deciding its kind later via 'modify --finish'")

	return cmd
}

func parseCreateKind(kind string) (card.ActionKind, error) {
	switch kind {
	case "normal":
		return card.CreateNormal, nil
	case "class":
		return card.CreateClass, nil
	case "instance":
		return card.CreateInstance, nil
	case "attribute-answer":
		return card.CreateAttributeAnswer, nil
	case "statement":
		return card.CreateStatement, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want normal|class|instance|attribute-answer|statement)", kind)
	}
}
