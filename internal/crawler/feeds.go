package crawler

import (
	"context"
	"math/rand"

	"github.com/velosix/rednote-collector/internal/paginate"
)

// scroller is the slice of a page the feeds drive.
type scroller interface {
	Count(ctx context.Context, selector string) (int, error)
	ScrollContainer(ctx context.Context, selector string, pixels int) (bool, error)
}

// domFeed adapts one scrollable region of a live page to paginate.Feed.
// The site renders both the search grid and the comment list inside a
// dedicated scroll container; when that container is missing (layout
// change, degraded page) scrolling falls back to the window.
type domFeed struct {
	pg            scroller
	itemSelectors []string
	container     string
	minPx, maxPx  int
	rng           *rand.Rand

	// chosen pins the first item selector that matched, so stall
	// detection compares like with like across rounds.
	chosen string
}

var _ paginate.Feed = (*domFeed)(nil)

// searchFeed counts result cards and scrolls in the coarser steps a human
// uses while skimming a grid.
func searchFeed(pg scroller, itemSelectors []string, rng *rand.Rand) *domFeed {
	return &domFeed{
		pg:            pg,
		itemSelectors: itemSelectors,
		container:     ".search-layout .note-scroller, #global .note-scroller",
		minPx:         300,
		maxPx:         600,
		rng:           rng,
	}
}

// commentFeed counts top-level comments and scrolls gently; the comment
// list loads in small pages and overshooting skips load triggers.
func commentFeed(pg scroller, itemSelectors []string, rng *rand.Rand) *domFeed {
	return &domFeed{
		pg:            pg,
		itemSelectors: itemSelectors,
		container:     ".note-scroller",
		minPx:         200,
		maxPx:         400,
		rng:           rng,
	}
}

func (f *domFeed) ItemCount(ctx context.Context) (int, error) {
	if f.chosen != "" {
		return f.pg.Count(ctx, f.chosen)
	}
	var last int
	for _, sel := range f.itemSelectors {
		n, err := f.pg.Count(ctx, sel)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			f.chosen = sel
			return n, nil
		}
		last = n
	}
	return last, nil
}

func (f *domFeed) Advance(ctx context.Context) error {
	px := f.minPx
	if f.maxPx > f.minPx {
		px += f.rng.Intn(f.maxPx - f.minPx)
	}
	_, err := f.pg.ScrollContainer(ctx, f.container, px)
	return err
}
