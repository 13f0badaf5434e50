package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// UnresolvableRecordError reports a record whose identifying fields could
// not be resolved by any rule in the strategy. Callers skip the record and
// keep going; the error carries enough to log what was lost.
type UnresolvableRecordError struct {
	Kind   string
	Reason string
}

func (e *UnresolvableRecordError) Error() string {
	return fmt.Sprintf("unresolvable %s record: %s", e.Kind, e.Reason)
}

// Engine extracts records from HTML snapshots. It never touches a live
// page: callers hand it serialized DOM, it hands back detached structs.
type Engine struct {
	baseURL string
	log     *zap.Logger
}

func NewEngine(baseURL string, log *zap.Logger) *Engine {
	return &Engine{baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// parse builds a detached document from a snapshot.
func parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// items resolves the strategy's item set: first selector with any match wins.
func items(doc *goquery.Document, strat Strategy) *goquery.Selection {
	for _, q := range strat.Items {
		if sel := doc.Find(q); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find(strat.Items[len(strat.Items)-1])
}

// resolve walks the rule chain for one field and returns the first
// non-empty value. Missing fields come back as "".
func resolve(root *goquery.Selection, rules []Rule) string {
	for _, r := range rules {
		target := root
		if r.Query != "" {
			target = root.Find(r.Query).First()
			if target.Length() == 0 {
				continue
			}
		}
		var v string
		if r.Attr == "" {
			v = CleanText(target.Text())
		} else {
			v, _ = target.Attr(r.Attr)
			v = strings.TrimSpace(v)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// exists reports whether any rule in the chain locates an element,
// regardless of its content. Used for marker elements like the video badge.
func exists(root *goquery.Selection, rules []Rule) bool {
	for _, r := range rules {
		if r.Query == "" {
			return root.Length() > 0
		}
		if root.Find(r.Query).Length() > 0 {
			return true
		}
	}
	return false
}

// resolveAll collects the value of every element a field's first matching
// rule finds, de-duplicated in document order.
func resolveAll(root *goquery.Selection, rules []Rule) []string {
	for _, r := range rules {
		sel := root.Find(r.Query)
		if sel.Length() == 0 {
			continue
		}
		seen := make(map[string]struct{}, sel.Length())
		var out []string
		sel.Each(func(_ int, s *goquery.Selection) {
			var v string
			if r.Attr == "" {
				v = CleanText(s.Text())
			} else {
				v, _ = s.Attr(r.Attr)
				v = strings.TrimSpace(v)
			}
			if v == "" {
				return
			}
			if _, dup := seen[v]; dup {
				return
			}
			seen[v] = struct{}{}
			out = append(out, v)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// absolute resolves a site-relative href against the engine's base URL.
func (e *Engine) absolute(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.baseURL + href
}

// SearchSummaries extracts result cards from a search feed snapshot. Cards
// without a resolvable note id are dropped and reported in the error slice;
// the good cards still come back.
func (e *Engine) SearchSummaries(html string, strat Strategy) ([]SearchSummary, []error) {
	doc, err := parse(html)
	if err != nil {
		return nil, []error{fmt.Errorf("parse search snapshot: %w", err)}
	}
	var (
		out  []SearchSummary
		errs []error
	)
	items(doc, strat).Each(func(i int, card *goquery.Selection) {
		href := resolve(card, strat.Fields[fieldNoteLink])
		id := NoteIDFromURL(href)
		if id == "" {
			errs = append(errs, &UnresolvableRecordError{
				Kind:   "search",
				Reason: fmt.Sprintf("card %d: no note link resolved", i),
			})
			return
		}
		rec := SearchSummary{
			NoteID:      id,
			Title:       resolve(card, strat.Fields[fieldTitle]),
			Author:      resolve(card, strat.Fields[fieldAuthor]),
			AuthorID:    UserIDFromURL(resolve(card, strat.Fields[fieldAuthorLink])),
			CoverURL:    resolve(card, strat.Fields[fieldCover]),
			LikeCount:   NormalizeCount(resolve(card, strat.Fields[fieldLikes])),
			NoteURL:     e.absolute(href),
			NoteType:    "image",
			PublishTime: resolve(card, strat.Fields[fieldPublishTime]),
		}
		if exists(card, strat.Fields[fieldVideoMark]) {
			rec.NoteType = "video"
		}
		out = append(out, rec)
	})
	if len(out) == 0 && len(errs) == 0 {
		e.log.Debug("search snapshot yielded no cards",
			zap.String("strategy", strat.Version))
	}
	return out, errs
}

// NoteDetail extracts the note page. The id and URL come from navigation,
// so the record is resolvable even when every content selector misses;
// missing fields default to zero values.
func (e *Engine) NoteDetail(html, noteID, noteURL string, strat Strategy) (NoteDetail, error) {
	if noteID == "" {
		return NoteDetail{}, &UnresolvableRecordError{Kind: "note", Reason: "empty note id"}
	}
	doc, err := parse(html)
	if err != nil {
		return NoteDetail{}, fmt.Errorf("parse note snapshot: %w", err)
	}
	root := items(doc, strat)
	if root.Length() == 0 {
		root = doc.Selection
	}
	d := NoteDetail{
		NoteID:       noteID,
		NoteURL:      noteURL,
		Title:        resolve(root, strat.Fields[fieldTitle]),
		Body:         resolve(root, strat.Fields[fieldBody]),
		Author:       resolve(root, strat.Fields[fieldAuthor]),
		AuthorID:     UserIDFromURL(resolve(root, strat.Fields[fieldAuthorLink])),
		LikeCount:    NormalizeCount(resolve(root, strat.Fields[fieldLikes])),
		CollectCount: NormalizeCount(resolve(root, strat.Fields[fieldCollects])),
		ShareCount:   NormalizeCount(resolve(root, strat.Fields[fieldShares])),
		CommentCount: NormalizeCount(resolve(root, strat.Fields[fieldComments])),
		PublishTime:  resolve(root, strat.Fields[fieldPublishTime]),
		Tags:         resolveAll(root, strat.Fields[fieldTag]),
		Images:       resolveAll(root, strat.Fields[fieldImage]),
		VideoURL:     resolve(root, strat.Fields[fieldVideoSrc]),
		NoteType:     "image",
	}
	if d.VideoURL != "" {
		d.NoteType = "video"
	}
	if len(d.Images) > 0 {
		d.CoverURL = d.Images[0]
	}
	return d, nil
}

// Comments extracts top-level comments from a note page snapshot. Comments
// with no id get a positional synthetic one so likes under redesigned
// markup are not silently dropped; comments with no body are skipped.
func (e *Engine) Comments(html, noteID string, strat Strategy) ([]Comment, []error) {
	doc, err := parse(html)
	if err != nil {
		return nil, []error{fmt.Errorf("parse comment snapshot: %w", err)}
	}
	var (
		out  []Comment
		errs []error
	)
	items(doc, strat).Each(func(i int, item *goquery.Selection) {
		body := resolve(item, strat.Fields[fieldBody])
		id := strings.TrimPrefix(resolve(item, strat.Fields[fieldCommentID]), "comment-")
		if body == "" && id == "" {
			errs = append(errs, &UnresolvableRecordError{
				Kind:   "comment",
				Reason: fmt.Sprintf("item %d: neither id nor body resolved", i),
			})
			return
		}
		if id == "" {
			id = fmt.Sprintf("%s-pos-%d", noteID, i)
		}
		out = append(out, Comment{
			CommentID:  id,
			NoteID:     noteID,
			UserName:   resolve(item, strat.Fields[fieldUserName]),
			UserID:     UserIDFromURL(resolve(item, strat.Fields[fieldUserLink])),
			Body:       body,
			LikeCount:  NormalizeCount(resolve(item, strat.Fields[fieldLikes])),
			Time:       resolve(item, strat.Fields[fieldPublishTime]),
			IPLocation: resolve(item, strat.Fields[fieldIPLocation]),
		})
	})
	return out, errs
}
