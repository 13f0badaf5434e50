// Package extract turns DOM snapshots into detached, structured records.
//
// Selector lookup is data-driven: every semantic field carries an ordered
// list of candidate rules, and the first rule that yields data wins. This is
// what isolates the rest of the pipeline from markup churn on the target
// site.
package extract

// SearchSummary is one card from the search results feed.
type SearchSummary struct {
	NoteID      string `json:"note_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	AuthorID    string `json:"author_id"`
	CoverURL    string `json:"cover_url"`
	LikeCount   int    `json:"likes"`
	NoteURL     string `json:"note_url"`
	NoteType    string `json:"note_type"` // "video" or "image"
	PublishTime string `json:"publish_time"`
}

// NoteDetail is the full content of one note page, comments included.
// All fields are copies; nothing references the live page.
type NoteDetail struct {
	NoteID       string    `json:"note_id"`
	NoteURL      string    `json:"note_url"`
	CoverURL     string    `json:"cover_url"`
	Title        string    `json:"title"`
	Body         string    `json:"content"`
	Author       string    `json:"author"`
	AuthorID     string    `json:"author_id"`
	LikeCount    int       `json:"likes"`
	CollectCount int       `json:"collects"`
	ShareCount   int       `json:"shares"`
	CommentCount int       `json:"comment_count"`
	NoteType     string    `json:"note_type"`
	PublishTime  string    `json:"publish_time"`
	Tags         []string  `json:"tags"`
	Images       []string  `json:"images"`
	VideoURL     string    `json:"video_url"`
	Comments     []Comment `json:"comments"`
}

// Comment is a single top-level comment under a note.
type Comment struct {
	CommentID  string `json:"comment_id"`
	NoteID     string `json:"note_id"`
	UserName   string `json:"user_name"`
	UserID     string `json:"user_id"`
	Body       string `json:"content"`
	LikeCount  int    `json:"likes"`
	Time       string `json:"time"`
	IPLocation string `json:"ip_location"`
}
