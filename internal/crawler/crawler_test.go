package crawler

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/extract"
	"github.com/velosix/rednote-collector/internal/resilience"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProbe struct {
	location    string
	selectorHit bool
}

func (p *fakeProbe) Location(context.Context) (string, error) { return p.location, nil }
func (p *fakeProbe) Exists(context.Context, string) (bool, error) {
	return p.selectorHit, nil
}

func testSite() config.SiteConfig {
	return config.SiteConfig{
		ChallengeHints:    []string{"/web-login/captcha", "verify"},
		ChallengeSelector: ".captcha-container",
	}
}

func TestCheckChallengeCleanPage(t *testing.T) {
	p := &fakeProbe{location: "https://www.xiaohongshu.com/explore/66aa01"}
	require.NoError(t, checkChallenge(context.Background(), p, testSite()))
}

func TestCheckChallengeByURL(t *testing.T) {
	p := &fakeProbe{location: "https://www.xiaohongshu.com/web-login/captcha?redirect=x"}
	err := checkChallenge(context.Background(), p, testSite())
	require.ErrorIs(t, err, resilience.ErrChallengeDetected)
}

func TestCheckChallengeByURLCaseInsensitive(t *testing.T) {
	p := &fakeProbe{location: "https://www.xiaohongshu.com/VERIFY/slider"}
	err := checkChallenge(context.Background(), p, testSite())
	require.ErrorIs(t, err, resilience.ErrChallengeDetected)
}

func TestCheckChallengeBySelector(t *testing.T) {
	p := &fakeProbe{location: "https://www.xiaohongshu.com/explore/66aa01", selectorHit: true}
	err := checkChallenge(context.Background(), p, testSite())
	require.ErrorIs(t, err, resilience.ErrChallengeDetected)
}

type fakeScroller struct {
	counts  map[string]int
	scrolls []int
	found   bool
}

func (s *fakeScroller) Count(_ context.Context, selector string) (int, error) {
	return s.counts[selector], nil
}

func (s *fakeScroller) ScrollContainer(_ context.Context, _ string, px int) (bool, error) {
	s.scrolls = append(s.scrolls, px)
	return s.found, nil
}

func TestDomFeedPinsFirstMatchingSelector(t *testing.T) {
	s := &fakeScroller{counts: map[string]int{"div.note-item": 7}}
	f := searchFeed(s, []string{"section.note-item", "div.note-item"}, rand.New(rand.NewSource(1)))

	n, err := f.ItemCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "div.note-item", f.chosen)

	// later rounds only consult the pinned selector
	s.counts["section.note-item"] = 100
	n, err = f.ItemCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestDomFeedNoMatchesYieldsZero(t *testing.T) {
	s := &fakeScroller{counts: map[string]int{}}
	f := searchFeed(s, []string{"a", "b"}, rand.New(rand.NewSource(1)))
	n, err := f.ItemCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.chosen)
}

func TestDomFeedScrollBounds(t *testing.T) {
	s := &fakeScroller{}
	f := searchFeed(s, []string{"x"}, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		require.NoError(t, f.Advance(context.Background()))
	}
	for _, px := range s.scrolls {
		assert.GreaterOrEqual(t, px, 300)
		assert.Less(t, px, 600)
	}

	s2 := &fakeScroller{}
	cf := commentFeed(s2, []string{"x"}, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		require.NoError(t, cf.Advance(context.Background()))
	}
	for _, px := range s2.scrolls {
		assert.GreaterOrEqual(t, px, 200)
		assert.Less(t, px, 400)
	}
}

func TestDedupeCards(t *testing.T) {
	c := &Crawler{seenNotes: make(map[string]struct{})}
	first := c.dedupeCards([]extract.SearchSummary{
		{NoteID: "a"}, {NoteID: "b"}, {NoteID: "a"},
	})
	require.Len(t, first, 2)

	// a second keyword must not re-yield notes from the first
	second := c.dedupeCards([]extract.SearchSummary{
		{NoteID: "b"}, {NoteID: "c"},
	})
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].NoteID)
}

func TestDedupeComments(t *testing.T) {
	out := dedupeComments([]extract.Comment{
		{CommentID: "1", Body: "x"},
		{CommentID: "2", Body: "y"},
		{CommentID: "1", Body: "x again"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "x", out[0].Body)
}

func TestMergeCard(t *testing.T) {
	d := extract.NoteDetail{NoteID: "a", Title: "page title", LikeCount: 0}
	card := extract.SearchSummary{
		NoteID: "a", Title: "card title", Author: "阿黎",
		AuthorID: "5caa", LikeCount: 12000, NoteType: "video", PublishTime: "08-12",
	}
	mergeCard(&d, card)

	assert.Equal(t, "page title", d.Title, "page value wins when present")
	assert.Equal(t, "阿黎", d.Author)
	assert.Equal(t, "5caa", d.AuthorID)
	assert.Equal(t, 12000, d.LikeCount)
	assert.Equal(t, "video", d.NoteType)
	assert.Equal(t, "08-12", d.PublishTime)
}
