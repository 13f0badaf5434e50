// Package storage writes collected records to disk, as raw JSON for
// archival and flat CSV for the people who live in spreadsheets.
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/extract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sink receives finished record batches. The crawler only ever appends;
// deduplication happens upstream.
type Sink interface {
	SaveSearch(keyword string, recs []extract.SearchSummary) error
	SaveNotes(keyword string, notes []extract.NoteDetail) error
	SaveComments(noteID string, comments []extract.Comment) error
}

// FileStore is the on-disk Sink. One run writes into a single directory
// with a shared timestamp so related files sort together.
type FileStore struct {
	dir      string
	saveJSON bool
	saveCSV  bool
	stamp    string
	log      *zap.Logger
}

func NewFileStore(cfg config.StorageConfig, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &FileStore{
		dir:      cfg.OutputDir,
		saveJSON: cfg.SaveRawJSON,
		saveCSV:  cfg.SaveCSV,
		stamp:    time.Now().Format("20060102-150405"),
		log:      log,
	}, nil
}

func (f *FileStore) SaveSearch(keyword string, recs []extract.SearchSummary) error {
	if len(recs) == 0 {
		return nil
	}
	base := fmt.Sprintf("search_%s_%s", sanitize(keyword), f.stamp)
	if err := f.writeJSON(base, recs); err != nil {
		return err
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.NoteID, r.Title, r.Author, r.AuthorID,
			strconv.Itoa(r.LikeCount), r.NoteURL, r.NoteType, r.PublishTime, r.CoverURL,
		})
	}
	return f.writeCSV(base, []string{
		"note_id", "title", "author", "author_id",
		"likes", "note_url", "note_type", "publish_time", "cover_url",
	}, rows)
}

func (f *FileStore) SaveNotes(keyword string, notes []extract.NoteDetail) error {
	if len(notes) == 0 {
		return nil
	}
	base := fmt.Sprintf("notes_%s_%s", sanitize(keyword), f.stamp)
	if err := f.writeJSON(base, notes); err != nil {
		return err
	}
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, []string{
			n.NoteID, n.Title, n.Body, n.Author, n.AuthorID,
			strconv.Itoa(n.LikeCount), strconv.Itoa(n.CollectCount),
			strconv.Itoa(n.ShareCount), strconv.Itoa(n.CommentCount),
			n.NoteType, n.PublishTime,
			strings.Join(n.Tags, ";"), strings.Join(n.Images, ";"),
			n.CoverURL, n.VideoURL, n.NoteURL,
		})
	}
	return f.writeCSV(base, []string{
		"note_id", "title", "content", "author", "author_id",
		"likes", "collects", "shares", "comment_count",
		"note_type", "publish_time", "tags", "images", "cover_url", "video_url", "note_url",
	}, rows)
}

func (f *FileStore) SaveComments(noteID string, comments []extract.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	base := fmt.Sprintf("comments_%s_%s", sanitize(noteID), f.stamp)
	if err := f.writeJSON(base, comments); err != nil {
		return err
	}
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{
			c.CommentID, c.NoteID, c.UserName, c.UserID,
			c.Body, strconv.Itoa(c.LikeCount), c.Time, c.IPLocation,
		})
	}
	return f.writeCSV(base, []string{
		"comment_id", "note_id", "user_name", "user_id",
		"content", "likes", "time", "ip_location",
	}, rows)
}

// WriteJSON stores an arbitrary document under the run's timestamp. Used
// for the run report.
func (f *FileStore) WriteJSON(name string, v any) (string, error) {
	base := fmt.Sprintf("%s_%s", sanitize(name), f.stamp)
	if err := f.writeJSONAlways(base, v); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, base+".json"), nil
}

func (f *FileStore) writeJSON(base string, v any) error {
	if !f.saveJSON {
		return nil
	}
	return f.writeJSONAlways(base, v)
}

func (f *FileStore) writeJSONAlways(base string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", base, err)
	}
	path := filepath.Join(f.dir, base+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	f.log.Info("saved", zap.String("path", path))
	return nil
}

func (f *FileStore) writeCSV(base string, header []string, rows [][]string) error {
	if !f.saveCSV {
		return nil
	}
	path := filepath.Join(f.dir, base+".csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	// BOM so the CJK content opens correctly in Excel
	if _, err := file.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s rows: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	f.log.Info("saved", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// sanitize keeps keywords (including CJK) readable in filenames while
// stripping anything the filesystem or a shell would care about.
func sanitize(s string) string {
	out := unsafeChars.ReplaceAllString(s, "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "untitled"
	}
	const maxRunes = 60
	if r := []rune(out); len(r) > maxRunes {
		out = string(r[:maxRunes])
	}
	return out
}
