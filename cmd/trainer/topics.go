package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainer/internal/topic"
)

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Browse the training topic catalog",
	}

	cmd.AddCommand(newTopicsListCmd())
	cmd.AddCommand(newTopicsRecommendCmd())
	return cmd
}

func newTopicsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all topics with progress and mood",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			writeTopics(cmd.OutOrStdout(), cat.All())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTopicsRecommendCmd() *cobra.Command {
	var (
		configPath string
		role       string
		grade      string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show the welcome screen lists for a trainee",
		Long:  "Prints recommended, in-progress and remaining topics. --role and --grade override the configured trainee.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			u := userContext(cfg)
			if cmd.Flags().Changed("role") {
				u.RoleID = role
			}
			if cmd.Flags().Changed("grade") {
				u.GradeID = grade
			}

			out := cmd.OutOrStdout()
			recommended := cat.Recommended(u)
			fmt.Fprintln(out, "Recommended:")
			writeTopics(out, recommended)
			fmt.Fprintln(out, "\nIn progress:")
			writeTopics(out, cat.InProgress())
			fmt.Fprintln(out, "\nAll topics:")
			writeTopics(out, cat.Remaining(recommended))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&role, "role", "", "trainee role id")
	cmd.Flags().StringVar(&grade, "grade", "", "trainee grade id")
	return cmd
}

func writeTopics(out io.Writer, topics []topic.Topic) {
	if len(topics) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROGRESS\tATTEMPTS\tAVG\tMOOD")
	for _, t := range topics {
		avg := "-"
		if t.Progress.AverageScore != nil {
			avg = fmt.Sprintf("%.1f", *t.Progress.AverageScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%d\t%s\t%s\n",
			t.ID, t.Name, t.Progress.SessionsPercent, t.Progress.AttemptsCount, avg, topic.MoodOf(t))
	}
	w.Flush()
}
