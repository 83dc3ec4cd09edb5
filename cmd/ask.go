package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnidoc/omnidoc/internal/answer"
	"github.com/omnidoc/omnidoc/internal/app"
)

var (
	askFallback bool
	askNoSave   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against your documents",
	Long: `Answers a question from the learned cache and your ingested
documents. With --fallback the answer comes from the model's general
knowledge instead; confident fallback answers are remembered unless
--no-save is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askFallback, "fallback", false, "answer from general knowledge instead of your documents")
	askCmd.Flags().BoolVar(&askNoSave, "no-save", false, "do not remember a confident fallback answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	var res *answer.Result
	if askFallback {
		res, err = a.Engine.AnswerWithFallback(ctx, question, !askNoSave)
	} else {
		res, err = a.Engine.AnswerLocally(ctx, question)
	}
	if err != nil {
		return err
	}

	printResult(cmd, res, question)
	return nil
}

// printResult renders a Result for the terminal.
func printResult(cmd *cobra.Command, res *answer.Result, question string) {
	cmd.Println(res.Answer)
	cmd.Println()
	cmd.Printf("confidence: %d/100  source: %s\n", res.Confidence, res.Source)

	if len(res.Sources) > 0 {
		cmd.Println("sources:")
		for _, c := range res.Sources {
			cmd.Printf("  %2d. %s (similarity %.2f)\n", c.Rank+1, c.File, c.Similarity)
		}
	}
	if res.SavedToStore {
		cmd.Println("answer saved for future questions")
	}
	if res.OfferFallback {
		cmd.Println()
		cmd.Println("This answer has low confidence. For a general-knowledge answer, run:")
		cmd.Printf("  omnidoc ask --fallback %q\n", question)
	}
}
