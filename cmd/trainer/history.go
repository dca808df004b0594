package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainer/internal/analysis"
	"github.com/zulandar/trainer/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect completed training sessions",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryStatsCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				writeHistory(cmd.OutOrStdout(), a.history.LoadAll(ctx))
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a history entry with its analysis and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				e, ok := a.history.Get(ctx, args[0])
				if !ok {
					return fmt.Errorf("history entry %s not found", args[0])
				}
				writeEntry(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newHistoryStatsCmd() *cobra.Command {
	var (
		configPath string
		topicID    string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion totals and per-topic improvement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				entries := a.history.LoadAll(ctx)
				if topicID != "" {
					p, ok := history.ProgressFor(entries, topicID)
					if !ok {
						fmt.Fprintf(out, "No completed sessions for %s\n", topicID)
						return nil
					}
					fmt.Fprintf(out, "Topic:     %s\n", p.TopicID)
					fmt.Fprintf(out, "Attempts:  %d\n", p.Attempts)
					fmt.Fprintf(out, "First:     %d\n", p.FirstScore)
					fmt.Fprintf(out, "Latest:    %d\n", p.LatestScore)
					fmt.Fprintf(out, "Change:    %+d\n", p.ImprovementDelta)
					return nil
				}

				d := history.Summarize(entries, time.Now().Add(-since))
				fmt.Fprintf(out, "Completed (last %s): %d\n", since, d.Completed)
				fmt.Fprintf(out, "Completed (all time): %d\n", d.TotalAllTime)
				fmt.Fprintf(out, "Average score: %.1f\n", d.AverageScore)
				if len(d.Topics) == 0 {
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TOPIC\tATTEMPTS\tFIRST\tLATEST\tCHANGE")
				for _, p := range d.Topics {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%+d\n", p.TopicID, p.Attempts, p.FirstScore, p.LatestScore, p.ImprovementDelta)
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&topicID, "topic", "", "report progress for a single topic")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "window for the recent completion count")
	return cmd
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, configPath string, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func writeHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No completed sessions yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tCOMPLETED\tSCORE\tMESSAGES")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			e.ID, e.TopicName, e.CompletedAt.Local().Format("2006-01-02 15:04"), history.AverageScore(e), len(e.Transcription))
	}
	w.Flush()
}

func writeEntry(out io.Writer, e history.Entry) {
	fmt.Fprintf(out, "ID:        %s\n", e.ID)
	fmt.Fprintf(out, "Topic:     %s (%s)\n", e.TopicName, e.TopicID)
	fmt.Fprintf(out, "Completed: %s\n", e.CompletedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Score:     %d/5\n", history.AverageScore(e))
	fmt.Fprintf(out, "\n%s\n\n", e.Result.Summary)
	blocks := [3]analysis.Block{e.Result.Block1, e.Result.Block2, e.Result.Block3}
	for i, b := range blocks {
		fmt.Fprintf(out, "  %d. %s: %d/5\n     %s\n", i+1, analysis.BlockNames[i], b.Score, b.Description)
	}
	if len(e.Transcription) == 0 {
		return
	}
	fmt.Fprintln(out, "\nTranscript:")
	for _, m := range e.Transcription {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.Role, m.Content)
	}
}
