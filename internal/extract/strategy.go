package extract

// Rule locates one piece of data relative to an item root. An empty Query
// targets the item root itself; an empty Attr reads the element text.
type Rule struct {
	Query string
	Attr  string
}

// Strategy bundles the item selectors and per-field rule chains for one
// page layout generation. Strategies are versioned so a layout change ships
// as a new strategy instead of edits scattered through the engine.
type Strategy struct {
	Version string
	// Items is tried in order; the first selector that matches anything
	// defines the item set for this page.
	Items  []string
	Fields map[string][]Rule
}

// Field names shared between strategies and the engine.
const (
	fieldNoteLink    = "note_link"
	fieldTitle       = "title"
	fieldBody        = "body"
	fieldAuthor      = "author"
	fieldAuthorLink  = "author_link"
	fieldCover       = "cover"
	fieldLikes       = "likes"
	fieldCollects    = "collects"
	fieldShares      = "shares"
	fieldComments    = "comments"
	fieldVideoMark   = "video_marker"
	fieldPublishTime = "publish_time"
	fieldTag         = "tag"
	fieldImage       = "image"
	fieldVideoSrc    = "video_src"
	fieldCommentID   = "comment_id"
	fieldUserName    = "user_name"
	fieldUserLink    = "user_link"
	fieldIPLocation  = "ip_location"
)

// SearchStrategy matches the current search result grid. Earlier rules
// reflect the markup observed in production; later ones are the looser
// fallbacks that survived past redesigns.
func SearchStrategy() Strategy {
	return Strategy{
		Version: "search/v2",
		Items: []string{
			"section.note-item",
			"div.note-item",
			".feeds-container section",
		},
		Fields: map[string][]Rule{
			fieldNoteLink: {
				{Query: "a.cover", Attr: "href"},
				{Query: "a[href*='/explore/']", Attr: "href"},
				{Query: "a[href*='/discovery/item/']", Attr: "href"},
			},
			fieldTitle: {
				{Query: ".footer .title span"},
				{Query: ".title span"},
				{Query: ".title"},
			},
			fieldAuthor: {
				{Query: ".author-wrapper .name"},
				{Query: ".author .name"},
				{Query: ".user-name"},
			},
			fieldAuthorLink: {
				{Query: "a[href*='/user/profile/']", Attr: "href"},
			},
			fieldCover: {
				{Query: "a.cover img", Attr: "data-src"},
				{Query: "a.cover img", Attr: "src"},
				{Query: "img:not(.author-avatar)", Attr: "data-src"},
				{Query: "img:not(.author-avatar)", Attr: "src"},
			},
			fieldLikes: {
				{Query: ".like-wrapper .count"},
				{Query: ".like-wrapper"},
				{Query: ".interaction-info .count"},
			},
			fieldVideoMark: {
				{Query: ".play-icon"},
				{Query: "span.video-icon"},
				{Query: "svg.video"},
			},
			fieldPublishTime: {
				{Query: ".time"},
				{Query: ".date"},
			},
		},
	}
}

// DetailStrategy matches the note detail page.
func DetailStrategy() Strategy {
	return Strategy{
		Version: "detail/v2",
		Items: []string{
			"#noteContainer",
			".note-container",
			"#detail-container",
		},
		Fields: map[string][]Rule{
			fieldTitle: {
				{Query: "#detail-title"},
				{Query: ".note-content .title"},
				{Query: ".title"},
			},
			fieldBody: {
				{Query: "#detail-desc .note-text"},
				{Query: "#detail-desc"},
				{Query: ".note-content .desc"},
				{Query: ".desc"},
			},
			fieldAuthor: {
				{Query: ".author-container .username"},
				{Query: ".author .name"},
				{Query: ".username"},
			},
			fieldAuthorLink: {
				{Query: ".author-container a[href*='/user/profile/']", Attr: "href"},
				{Query: "a[href*='/user/profile/']", Attr: "href"},
			},
			fieldLikes: {
				{Query: ".engage-bar .like-wrapper .count"},
				{Query: ".like-wrapper .count"},
			},
			fieldCollects: {
				{Query: ".engage-bar .collect-wrapper .count"},
				{Query: ".collect-wrapper .count"},
			},
			fieldShares: {
				{Query: ".engage-bar .share-wrapper .count"},
				{Query: ".share-wrapper .count"},
			},
			fieldComments: {
				{Query: ".engage-bar .chat-wrapper .count"},
				{Query: ".chat-wrapper .count"},
				{Query: ".comments-container .total"},
			},
			fieldPublishTime: {
				{Query: ".bottom-container .date"},
				{Query: ".note-content .date"},
				{Query: ".date"},
			},
			fieldTag: {
				{Query: "#detail-desc a.tag"},
				{Query: ".note-content .tag"},
			},
			fieldImage: {
				{Query: ".swiper-slide img", Attr: "data-src"},
				{Query: ".swiper-slide img", Attr: "src"},
				{Query: ".media-container img", Attr: "src"},
			},
			fieldVideoSrc: {
				{Query: "video", Attr: "src"},
				{Query: "xg-video-container video", Attr: "src"},
			},
		},
	}
}

// CommentStrategy matches one top-level comment. The first item selector
// deliberately excludes nested replies; the fallbacks accept them when the
// wrapper structure changes.
func CommentStrategy() Strategy {
	return Strategy{
		Version: "comment/v2",
		Items: []string{
			".comments-container .parent-comment > .comment-item",
			".parent-comment > .comment-item",
			".comment-item",
		},
		Fields: map[string][]Rule{
			fieldCommentID: {
				{Attr: "id"},
				{Query: "[id^='comment-']", Attr: "id"},
			},
			fieldUserName: {
				{Query: ".author-wrapper .author .name"},
				{Query: ".author .name"},
				{Query: ".name"},
			},
			fieldUserLink: {
				{Query: "a[href*='/user/profile/']", Attr: "href"},
			},
			fieldBody: {
				{Query: ".content .note-text"},
				{Query: ".content"},
			},
			fieldLikes: {
				{Query: ".like .count"},
				{Query: ".like-wrapper .count"},
			},
			fieldPublishTime: {
				{Query: ".info .date span:first-child"},
				{Query: ".info .date"},
				{Query: ".date"},
			},
			fieldIPLocation: {
				{Query: ".info .date .location"},
				{Query: ".location"},
			},
		},
	}
}
