package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const searchFixture = `
<div class="feeds-container">
  <section class="note-item">
    <a class="cover" href="/explore/66aabbcc01?xsec_token=t1">
      <img data-src="https://cdn.example.com/c1.jpg" src="placeholder.gif">
    </a>
    <span class="play-icon"></span>
    <div class="footer">
      <div class="title"><span>City walk 路线分享</span></div>
      <div class="author-wrapper">
        <a href="/user/profile/5caa0001?channel=search">
          <img class="author-avatar" src="https://cdn.example.com/a1.jpg">
          <span class="name">阿黎</span>
        </a>
        <span class="like-wrapper"><span class="count">1.2万</span></span>
      </div>
    </div>
  </section>
  <section class="note-item">
    <a class="cover" href="/explore/66aabbcc02">
      <img src="https://cdn.example.com/c2.jpg">
    </a>
    <div class="footer">
      <div class="title"><span>Second note</span></div>
      <div class="author-wrapper">
        <span class="name">bob</span>
        <span class="like-wrapper"><span class="count">88</span></span>
      </div>
    </div>
  </section>
  <section class="note-item">
    <div class="footer"><div class="title"><span>broken card</span></div></div>
  </section>
</div>`

func TestSearchSummaries(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	recs, errs := e.SearchSummaries(searchFixture, SearchStrategy())

	require.Len(t, recs, 2)
	require.Len(t, errs, 1)

	var unres *UnresolvableRecordError
	require.ErrorAs(t, errs[0], &unres)
	assert.Equal(t, "search", unres.Kind)

	want := SearchSummary{
		NoteID:    "66aabbcc01",
		Title:     "City walk 路线分享",
		Author:    "阿黎",
		AuthorID:  "5caa0001",
		CoverURL:  "https://cdn.example.com/c1.jpg",
		LikeCount: 12000,
		NoteURL:   "https://www.xiaohongshu.com/explore/66aabbcc01?xsec_token=t1",
		NoteType:  "video",
	}
	if diff := cmp.Diff(want, recs[0]); diff != "" {
		t.Errorf("first card mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "66aabbcc02", recs[1].NoteID)
	assert.Equal(t, "image", recs[1].NoteType)
	assert.Equal(t, 88, recs[1].LikeCount)
	assert.Empty(t, recs[1].AuthorID)
}

func TestSearchSummariesEmptySnapshot(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	recs, errs := e.SearchSummaries("<html><body></body></html>", SearchStrategy())
	assert.Empty(t, recs)
	assert.Empty(t, errs)
}

const detailFixture = `
<div id="noteContainer">
  <div class="author-container">
    <a href="/user/profile/5cbb0002"><span class="username">林小满</span></a>
  </div>
  <div class="note-content">
    <div id="detail-title">三亚五日游攻略</div>
    <div id="detail-desc">
      <span class="note-text">第一天直奔后海村，人少浪稳。</span>
      <a class="tag" href="/search?keyword=三亚">#三亚</a>
      <a class="tag" href="/search?keyword=旅行">#旅行</a>
    </div>
    <div class="bottom-container"><span class="date">2026-08-12 广东</span></div>
  </div>
  <div class="media-container">
    <div class="swiper-slide"><img data-src="https://cdn.example.com/p1.jpg"></div>
    <div class="swiper-slide"><img data-src="https://cdn.example.com/p2.jpg"></div>
    <div class="swiper-slide"><img data-src="https://cdn.example.com/p1.jpg"></div>
  </div>
  <div class="engage-bar">
    <span class="like-wrapper"><span class="count">4.5w</span></span>
    <span class="collect-wrapper"><span class="count">3,211</span></span>
    <span class="chat-wrapper"><span class="count">542</span></span>
  </div>
  <div class="comments-container">
    <div class="parent-comment">
      <div class="comment-item" id="comment-cc01">
        <div class="author-wrapper">
          <a class="author" href="/user/profile/5dcc0003"><span class="name">momo</span></a>
        </div>
        <div class="content"><span class="note-text">收藏了，十月就去</span></div>
        <div class="info">
          <div class="date"><span>08-13</span><span class="location">浙江</span></div>
          <div class="like"><span class="count">12</span></div>
        </div>
        <div class="reply-container">
          <div class="comment-item" id="comment-cc01-r1">
            <div class="content"><span class="note-text">nested reply must not appear</span></div>
          </div>
        </div>
      </div>
    </div>
    <div class="parent-comment">
      <div class="comment-item">
        <div class="content"><span class="note-text">门票多少钱</span></div>
      </div>
    </div>
  </div>
</div>`

func TestNoteDetail(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	d, err := e.NoteDetail(detailFixture, "66dd0001", "https://www.xiaohongshu.com/explore/66dd0001", DetailStrategy())
	require.NoError(t, err)

	assert.Equal(t, "三亚五日游攻略", d.Title)
	assert.Equal(t, "第一天直奔后海村，人少浪稳。", d.Body)
	assert.Equal(t, "林小满", d.Author)
	assert.Equal(t, "5cbb0002", d.AuthorID)
	assert.Equal(t, 45000, d.LikeCount)
	assert.Equal(t, 3211, d.CollectCount)
	assert.Equal(t, 542, d.CommentCount)
	assert.Equal(t, "2026-08-12 广东", d.PublishTime)
	assert.Equal(t, []string{"#三亚", "#旅行"}, d.Tags)
	assert.Equal(t, []string{"https://cdn.example.com/p1.jpg", "https://cdn.example.com/p2.jpg"}, d.Images)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", d.CoverURL)
	assert.Equal(t, "image", d.NoteType)
	assert.Empty(t, d.VideoURL)
}

func TestNoteDetailRequiresID(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	_, err := e.NoteDetail(detailFixture, "", "", DetailStrategy())
	var unres *UnresolvableRecordError
	require.ErrorAs(t, err, &unres)
}

func TestNoteDetailSelectorsMiss(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	d, err := e.NoteDetail("<html><body><p>nothing here</p></body></html>", "66dd0002", "u", DetailStrategy())
	require.NoError(t, err)
	assert.Equal(t, "66dd0002", d.NoteID)
	assert.Empty(t, d.Title)
	assert.Zero(t, d.LikeCount)
}

func TestComments(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	cs, errs := e.Comments(detailFixture, "66dd0001", CommentStrategy())
	require.Empty(t, errs)
	require.Len(t, cs, 2)

	assert.Equal(t, "cc01", cs[0].CommentID)
	assert.Equal(t, "66dd0001", cs[0].NoteID)
	assert.Equal(t, "momo", cs[0].UserName)
	assert.Equal(t, "5dcc0003", cs[0].UserID)
	assert.Equal(t, "收藏了，十月就去", cs[0].Body)
	assert.Equal(t, 12, cs[0].LikeCount)
	assert.Equal(t, "08-13", cs[0].Time)
	assert.Equal(t, "浙江", cs[0].IPLocation)

	// second comment has no id attribute: synthetic positional id
	assert.Equal(t, "66dd0001-pos-1", cs[1].CommentID)
	assert.Equal(t, "门票多少钱", cs[1].Body)
}

func TestExtractionIsRepeatable(t *testing.T) {
	e := NewEngine("https://www.xiaohongshu.com", zaptest.NewLogger(t))
	a, _ := e.SearchSummaries(searchFixture, SearchStrategy())
	b, _ := e.SearchSummaries(searchFixture, SearchStrategy())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("extraction not repeatable (-first +second):\n%s", diff)
	}
}
