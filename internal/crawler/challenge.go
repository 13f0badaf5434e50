package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/resilience"
)

// probePage is the slice of a page challenge detection needs.
type probePage interface {
	Location(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
}

// checkChallenge inspects the current page for an anti-bot interstitial:
// first the URL against the known challenge path fragments, then the DOM
// for the captcha containers. A hit is ErrChallengeDetected, which the
// resilience layer refuses to retry and the run loop treats as fatal.
func checkChallenge(ctx context.Context, pg probePage, site config.SiteConfig) error {
	loc, err := pg.Location(ctx)
	if err != nil {
		return fmt.Errorf("read location for challenge check: %w", err)
	}
	for _, hint := range site.ChallengeHints {
		if strings.Contains(strings.ToLower(loc), strings.ToLower(hint)) {
			return fmt.Errorf("url %s matches hint %q: %w", loc, hint, resilience.ErrChallengeDetected)
		}
	}
	if site.ChallengeSelector == "" {
		return nil
	}
	hit, err := pg.Exists(ctx, site.ChallengeSelector)
	if err != nil {
		return fmt.Errorf("probe challenge selector: %w", err)
	}
	if hit {
		return fmt.Errorf("challenge element present on %s: %w", loc, resilience.ErrChallengeDetected)
	}
	return nil
}
