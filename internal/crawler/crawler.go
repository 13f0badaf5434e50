// Package crawler orchestrates a collection run: authenticate, then for
// each keyword load the search feed, open every note, and hand the
// extracted records to storage. Individual records and notes fail soft;
// a challenge interstitial or a cancelled context ends the run.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/auth"
	"github.com/velosix/rednote-collector/internal/browser"
	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/extract"
	"github.com/velosix/rednote-collector/internal/paginate"
	"github.com/velosix/rednote-collector/internal/resilience"
	"github.com/velosix/rednote-collector/internal/storage"
)

// ReportWriter persists the run summary. Implemented by storage.FileStore.
type ReportWriter interface {
	WriteJSON(name string, v any) (string, error)
}

// Crawler drives one collection run over a live browser session.
type Crawler struct {
	cfg     *config.Config
	session *browser.Session
	engine  *extract.Engine
	pager   *paginate.Engine
	res     *resilience.Layer
	sink    storage.Sink
	reports ReportWriter
	log     *zap.Logger
	rng     *rand.Rand

	seenNotes map[string]struct{}
}

// New wires a crawler from the run configuration. reports may be nil when
// no summary file is wanted.
func New(cfg *config.Config, session *browser.Session, sink storage.Sink, reports ReportWriter, log *zap.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		session: session,
		engine:  extract.NewEngine(cfg.Site.HomeURL, log),
		pager: paginate.NewEngine(paginate.Config{
			StallLimit:        cfg.Crawler.StallLimit,
			SettleMin:         cfg.Delay.ScrollPauseMin,
			SettleMax:         cfg.Delay.ScrollPauseMax,
			SettleTimeout:     cfg.Crawler.SettleTimeout,
			MaxSettleFailures: cfg.Crawler.MaxSettleFailures,
		}, log),
		res: resilience.NewLayer(resilience.Config{
			Attempts:       cfg.Resilience.Attempts,
			BackoffBase:    cfg.Resilience.Backoff,
			BackoffJitter:  cfg.Resilience.BackoffJitter,
			StepsPerSecond: cfg.Resilience.StepsPerSecond,
			PauseMin:       cfg.Resilience.ActionDelayMin,
			PauseMax:       cfg.Resilience.ActionDelayMax,
		}, log),
		sink:      sink,
		reports:   reports,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		seenNotes: make(map[string]struct{}),
	}
}

// Run executes the configured collection. The returned report is always
// populated, also on error; everything collected before a failure has
// already been flushed to the sink.
func (c *Crawler) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	defer c.writeReport(rep)

	c.log.Info("run starting",
		zap.String("run_id", rep.RunID),
		zap.Strings("keywords", c.cfg.Crawler.Keywords))

	authc := auth.NewController(
		&sessionClient{session: c.session, statePath: c.cfg.Browser.StatePath},
		c.cfg.Site, c.cfg.Auth, c.log)
	state, err := authc.EnsureAuthenticated(ctx)
	rep.LoginState = state.String()
	if err != nil {
		rep.Aborted = fmt.Sprintf("authentication failed: %v", err)
		return rep, fmt.Errorf("authenticate: %w", err)
	}

	for i, kw := range c.cfg.Crawler.Keywords {
		kres, err := c.collectKeyword(ctx, kw, rep)
		rep.Keywords = append(rep.Keywords, kres)
		rep.Notes += kres.NotesCollected
		rep.Comments += kres.Comments
		if err != nil {
			rep.recordError(fmt.Errorf("keyword %q: %w", kw, err))
			if errors.Is(err, resilience.ErrChallengeDetected) || ctx.Err() != nil {
				rep.Aborted = err.Error()
				return rep, err
			}
			c.log.Warn("keyword failed, moving on", zap.String("keyword", kw), zap.Error(err))
		}
		if i < len(c.cfg.Crawler.Keywords)-1 {
			if err := c.sleepBetween(ctx, c.cfg.Delay.BetweenKeywordsMin, c.cfg.Delay.BetweenKeywordsMax); err != nil {
				rep.Aborted = err.Error()
				return rep, err
			}
		}
	}
	c.log.Info("run finished",
		zap.String("run_id", rep.RunID),
		zap.Int("notes", rep.Notes),
		zap.Int("comments", rep.Comments),
		zap.Int("errors", len(rep.Errors)))
	return rep, nil
}

// newPage opens a tab, recovering once from a crashed browser process.
func (c *Crawler) newPage(ctx context.Context) (*browser.Page, error) {
	page, err := c.session.NewPage(ctx)
	if err == nil {
		return page, nil
	}
	var pce *browser.PageCreateError
	if !errors.As(err, &pce) {
		return nil, err
	}
	c.log.Warn("page creation failed, recreating browser", zap.Error(err))
	if rerr := c.session.Recreate(ctx); rerr != nil {
		return nil, rerr
	}
	return c.session.NewPage(ctx)
}

func (c *Crawler) collectKeyword(ctx context.Context, kw string, rep *Report) (KeywordResult, error) {
	kres := KeywordResult{Keyword: kw}

	page, err := c.newPage(ctx)
	if err != nil {
		return kres, err
	}
	defer page.Close()

	target := fmt.Sprintf(c.cfg.Site.SearchURL, url.QueryEscape(kw))
	err = c.res.Do(ctx, "open search "+kw, func(ctx context.Context) error {
		if err := page.Navigate(ctx, target); err != nil {
			return err
		}
		return checkChallenge(ctx, page, c.cfg.Site)
	})
	if err != nil {
		return kres, err
	}

	strat := extract.SearchStrategy()
	feed := searchFeed(page, strat.Items, c.rng)
	if _, err := c.pager.LoadUntil(ctx, feed, c.cfg.Crawler.MaxNotesPerKeyword); err != nil {
		var unresp *paginate.PageUnresponsiveError
		if !errors.As(err, &unresp) {
			return kres, err
		}
		// keep whatever already rendered
		rep.recordError(fmt.Errorf("keyword %q: %w", kw, err))
		c.log.Warn("search feed unresponsive, extracting partial results", zap.String("keyword", kw))
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return kres, fmt.Errorf("snapshot search page: %w", err)
	}
	cards, extractErrs := c.engine.SearchSummaries(html, strat)
	for _, e := range extractErrs {
		rep.recordError(fmt.Errorf("keyword %q: %w", kw, e))
		kres.Skipped++
	}
	cards = c.dedupeCards(cards)
	if max := c.cfg.Crawler.MaxNotesPerKeyword; len(cards) > max {
		cards = cards[:max]
	}
	kres.CardsFound = len(cards)
	c.log.Info("search results extracted",
		zap.String("keyword", kw), zap.Int("cards", len(cards)))
	if err := c.sink.SaveSearch(kw, cards); err != nil {
		return kres, err
	}
	// free the tab before opening note pages
	page.Close()

	var notes []extract.NoteDetail
	defer func() {
		if len(notes) == 0 {
			return
		}
		if err := c.sink.SaveNotes(kw, notes); err != nil {
			rep.recordError(fmt.Errorf("save notes for %q: %w", kw, err))
		}
	}()

	for i, card := range cards {
		detail, n, err := c.collectNote(ctx, card)
		if err != nil {
			if errors.Is(err, resilience.ErrChallengeDetected) || ctx.Err() != nil {
				return kres, err
			}
			rep.recordError(fmt.Errorf("note %s: %w", card.NoteID, err))
			kres.Skipped++
			c.log.Warn("note failed, skipping",
				zap.String("note_id", card.NoteID), zap.Error(err))
			continue
		}
		notes = append(notes, detail)
		kres.NotesCollected++
		kres.Comments += n
		if i < len(cards)-1 {
			if err := c.sleepBetween(ctx, c.cfg.Delay.BetweenNotesMin, c.cfg.Delay.BetweenNotesMax); err != nil {
				return kres, err
			}
		}
	}
	return kres, nil
}

func (c *Crawler) collectNote(ctx context.Context, card extract.SearchSummary) (extract.NoteDetail, int, error) {
	page, err := c.newPage(ctx)
	if err != nil {
		return extract.NoteDetail{}, 0, err
	}
	defer page.Close()

	err = c.res.Do(ctx, "open note "+card.NoteID, func(ctx context.Context) error {
		if err := page.Navigate(ctx, card.NoteURL); err != nil {
			return err
		}
		return checkChallenge(ctx, page, c.cfg.Site)
	})
	if err != nil {
		return extract.NoteDetail{}, 0, err
	}

	commentStrat := extract.CommentStrategy()
	if max := c.cfg.Crawler.MaxCommentsPerNote; max > 0 {
		feed := commentFeed(page, commentStrat.Items, c.rng)
		if _, err := c.pager.LoadUntil(ctx, feed, max); err != nil {
			var unresp *paginate.PageUnresponsiveError
			if !errors.As(err, &unresp) {
				return extract.NoteDetail{}, 0, err
			}
			c.log.Warn("comment feed unresponsive, extracting partial comments",
				zap.String("note_id", card.NoteID))
		}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return extract.NoteDetail{}, 0, fmt.Errorf("snapshot note page: %w", err)
	}
	detail, err := c.engine.NoteDetail(html, card.NoteID, card.NoteURL, extract.DetailStrategy())
	if err != nil {
		return extract.NoteDetail{}, 0, err
	}
	mergeCard(&detail, card)

	comments, extractErrs := c.engine.Comments(html, card.NoteID, commentStrat)
	for _, e := range extractErrs {
		c.log.Debug("comment dropped", zap.String("note_id", card.NoteID), zap.Error(e))
	}
	comments = dedupeComments(comments)
	if max := c.cfg.Crawler.MaxCommentsPerNote; max > 0 && len(comments) > max {
		comments = comments[:max]
	}
	detail.Comments = comments

	if err := c.sink.SaveComments(card.NoteID, comments); err != nil {
		return extract.NoteDetail{}, 0, err
	}
	c.log.Info("note collected",
		zap.String("note_id", card.NoteID),
		zap.Int("comments", len(comments)))
	return detail, len(comments), nil
}

// mergeCard backfills detail fields the note page did not yield from the
// search card, which saw the same note through different markup.
func mergeCard(d *extract.NoteDetail, card extract.SearchSummary) {
	if d.Title == "" {
		d.Title = card.Title
	}
	if d.CoverURL == "" {
		d.CoverURL = card.CoverURL
	}
	if d.Author == "" {
		d.Author = card.Author
	}
	if d.AuthorID == "" {
		d.AuthorID = card.AuthorID
	}
	if d.LikeCount == 0 {
		d.LikeCount = card.LikeCount
	}
	if d.PublishTime == "" {
		d.PublishTime = card.PublishTime
	}
	if card.NoteType == "video" {
		d.NoteType = "video"
	}
}

// dedupeCards drops cards already seen in this run, across keywords.
func (c *Crawler) dedupeCards(cards []extract.SearchSummary) []extract.SearchSummary {
	out := cards[:0]
	for _, card := range cards {
		if _, dup := c.seenNotes[card.NoteID]; dup {
			continue
		}
		c.seenNotes[card.NoteID] = struct{}{}
		out = append(out, card)
	}
	return out
}

func dedupeComments(comments []extract.Comment) []extract.Comment {
	seen := make(map[string]struct{}, len(comments))
	out := comments[:0]
	for _, cm := range comments {
		if _, dup := seen[cm.CommentID]; dup {
			continue
		}
		seen[cm.CommentID] = struct{}{}
		out = append(out, cm)
	}
	return out
}

func (c *Crawler) sleepBetween(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(c.rng.Int63n(int64(max - min)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Crawler) writeReport(rep *Report) {
	rep.FinishedAt = time.Now().UTC()
	if c.reports == nil {
		return
	}
	path, err := c.reports.WriteJSON("run_report", rep)
	if err != nil {
		c.log.Warn("could not write run report", zap.Error(err))
		return
	}
	c.log.Info("run report written", zap.String("path", path))
}
