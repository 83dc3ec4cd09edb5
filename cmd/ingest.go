package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/omnidoc/omnidoc/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories into the document store",
	Long: `Extracts text from the given files or directories, splits it
into overlapping chunks, embeds each chunk and stores it for
retrieval. Re-ingesting a changed file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestRemoveCmd = &cobra.Command{
	Use:   "remove [path...]",
	Short: "Remove previously ingested files from the document store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngestRemove,
}

func init() {
	ingestCmd.AddCommand(ingestRemoveCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			res, err := a.Indexer.AddDirectory(ctx, path)
			if err != nil {
				return fmt.Errorf("ingesting directory %s: %w", path, err)
			}
			cmd.Printf("%s: %d files ingested (%d chunks), %d skipped, %d failed in %s\n",
				path, res.FilesAdded, res.ChunksAdded, res.FilesSkipped, res.FilesFailed,
				res.Duration.Round(10*time.Millisecond))
			continue
		}

		chunks, err := a.Indexer.AddFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		cmd.Printf("%s: %d chunks ingested\n", path, chunks)
	}

	return nil
}

func runIngestRemove(cmd *cobra.Command, args []string) error {
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

	for _, path := range args {
		deleted, err := a.Indexer.RemoveFile(ctx, path)
		if err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		cmd.Printf("%s: %d chunks removed\n", path, deleted)
	}

	return nil
}
