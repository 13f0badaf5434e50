package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/browser"
	"github.com/velosix/rednote-collector/internal/crawler"
	"github.com/velosix/rednote-collector/internal/identity"
	"github.com/velosix/rednote-collector/internal/observability"
	"github.com/velosix/rednote-collector/internal/storage"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [keyword ...]",
	Short: "Search the given keywords and collect notes with their comments",
	Long: `Crawl runs the full pipeline for each keyword: search, scroll the
result feed, open every note, scroll its comments, extract, and save.
Keywords given as arguments override crawler.keywords from the config.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Int("max-notes", 0, "override crawler.max_notes_per_keyword")
	crawlCmd.Flags().Int("max-comments", -1, "override crawler.max_comments_per_note")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	defer observability.Sync()
	log := observability.GetLogger()

	if len(args) > 0 {
		cfg.Crawler.Keywords = args
	}
	if len(cfg.Crawler.Keywords) == 0 {
		return fmt.Errorf("no keywords: pass them as arguments or set crawler.keywords")
	}
	if n, _ := cmd.Flags().GetInt("max-notes"); n > 0 {
		cfg.Crawler.MaxNotesPerKeyword = n
	}
	if n, _ := cmd.Flags().GetInt("max-comments"); n >= 0 {
		cfg.Crawler.MaxCommentsPerNote = n
	}

	ctx, stop := signalContext()
	defer stop()

	id := identity.NewProvider().Generate()
	session, err := browser.Open(ctx, cfg.Browser, id, log)
	if err != nil {
		return err
	}
	defer session.Close()

	store, err := storage.NewFileStore(cfg.Storage, log)
	if err != nil {
		return err
	}

	rep, err := crawler.New(cfg, session, store, store, log).Run(ctx)
	if rep != nil {
		log.Info("run summary",
			zap.String("run_id", rep.RunID),
			zap.String("login_state", rep.LoginState),
			zap.Int("notes", rep.Notes),
			zap.Int("comments", rep.Comments),
			zap.Int("errors", len(rep.Errors)))
	}
	return err
}
