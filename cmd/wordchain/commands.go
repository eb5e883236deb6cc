package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/wordchain/pkg/article"
	"github.com/japaniel/wordchain/pkg/text"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Summary of %s\n", a.cfg.Database.Path)
			s, err := a.engine.Summary(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, "Migration may be necessary, is this a valid database?")
				return err
			}
			fmt.Fprintf(out, "Words: %d\nPhrases: %d\n", s.Words, s.Phrases)
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or sync database against current code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		},
	}
}

func newCompleteCmd(a *app) *cobra.Command {
	var placeholder string
	var forward, middle bool
	cmd := &cobra.Command{
		Use:   "complete [words...]",
		Short: "Run a markov chain starting with args",
		Long: `Generate a phrase.

With no words a fresh phrase is generated. Otherwise the words are a phrase
with a placeholder (default "_") marking where the new phrase should grow
from; the words around the placeholder seed it.

Examples:
  wordchain complete
  wordchain complete the cat _ on the
  wordchain complete --forward the cat
  wordchain complete --middle the _ sat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if forward && middle {
				return fmt.Errorf("--forward and --middle are exclusive")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch {
			case forward:
				fmt.Fprintln(out, a.engine.Complete(ctx, args))
			case middle:
				fmt.Fprintln(out, a.engine.CompleteMiddleOut(ctx, args))
			default:
				candidates := [][]string{{""}}
				if len(args) > 0 {
					candidates = text.FindNearby(placeholder, args)
				}
				if len(candidates) == 0 {
					fmt.Fprintf(out, "Couldn't find %s to complete against\n", placeholder)
					return nil
				}
				fmt.Fprintln(out, a.engine.CompleteAround(ctx, candidates))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&placeholder, "placeholder", "_", "Word marking the gap to complete around")
	cmd.Flags().BoolVar(&forward, "forward", false, "Continue the words as a prefix")
	cmd.Flags().BoolVar(&middle, "middle", false, "Treat the words as [before, gap, after] slots")
	return cmd
}

func newReplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <message...>",
		Short: "Answer a message that mentions the trigger word",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, ok := a.engine.Reply(cmd.Context(), a.cfg.Trigger, strings.Join(args, " "))
			if !ok {
				a.logger.Debug("message does not mention trigger", zap.String("trigger", a.cfg.Trigger))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <words...>",
		Short: "Learn one phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.engine.Migrate(ctx); err != nil {
				return err
			}
			return a.engine.AddLine(ctx, strings.Join(args, " "))
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <file...>",
		Short: "Learn every line of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.engine.Migrate(ctx); err != nil {
				return err
			}
			for _, path := range args {
				report, err := a.engine.ReadFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d lines from %s\n", report.Lines, path)
			}
			return nil
		},
	}
}

func newReadURLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-url <url>",
		Short: "Learn the sentences of a web article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.engine.Migrate(ctx); err != nil {
				return err
			}

			f := article.NewFetcher(a.cfg.FetchTimeout())
			f.MaxBodyBytes = a.cfg.Fetch.MaxBodyBytes
			a.logger.Info("fetching article", zap.String("url", args[0]))
			art, err := f.Fetch(ctx, args[0])
			if err != nil {
				return err
			}

			report, err := a.engine.ReadLines(ctx, text.SplitSentences(art.Text))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d sentences from %q\n", report.Lines, art.Title)
			return nil
		},
	}
}
