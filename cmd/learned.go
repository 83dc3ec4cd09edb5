package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnidoc/omnidoc/internal/app"
)

var learnedLimit int

var learnedCmd = &cobra.Command{
	Use:   "learned",
	Short: "Manage remembered answers",
}

var learnedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered answers, newest first",
	RunE:  runLearnedList,
}

var learnedDeleteCmd = &cobra.Command{
	Use:   "delete [question]",
	Short: "Forget the remembered answer for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLearnedDelete,
}

var learnedStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learned-store statistics",
	RunE:  runLearnedStats,
}

func init() {
	learnedListCmd.Flags().IntVar(&learnedLimit, "limit", 50, "maximum entries to list")
	learnedCmd.AddCommand(learnedListCmd, learnedDeleteCmd, learnedStatsCmd)
	rootCmd.AddCommand(learnedCmd)
}

func runLearnedList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	entries, err := a.Learned.List(ctx, learnedLimit)
	if err != nil {
		return fmt.Errorf("listing learned answers: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("no learned answers yet")
		return nil
	}

	for _, e := range entries {
		cmd.Printf("%s  (confidence %d, accessed %d times)\n", e.Question, e.Confidence, e.AccessCount)
	}
	return nil
}

func runLearnedDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	question := strings.Join(args, " ")
	deleted, err := a.Learned.Delete(ctx, question)
	if err != nil {
		return fmt.Errorf("deleting learned answer: %w", err)
	}
	if !deleted {
		cmd.Printf("no learned answer for %q\n", question)
		return nil
	}
	cmd.Printf("forgot the answer for %q\n", question)
	return nil
}

func runLearnedStats(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	stats, err := a.Learned.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("getting learned stats: %w", err)
	}

	cmd.Printf("learned answers: %d\n", stats.Total)
	cmd.Printf("average confidence: %.1f\n", stats.AvgConfidence)
	return nil
}
