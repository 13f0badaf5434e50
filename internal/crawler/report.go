package crawler

import "time"

// KeywordResult summarizes one keyword's harvest.
type KeywordResult struct {
	Keyword        string `json:"keyword"`
	CardsFound     int    `json:"cards_found"`
	NotesCollected int    `json:"notes_collected"`
	Comments       int    `json:"comments"`
	Skipped        int    `json:"skipped"`
}

// Report is the run summary written next to the data files. Partial runs
// produce a report too; Aborted carries why.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	LoginState string          `json:"login_state"`
	Keywords   []KeywordResult `json:"keywords"`
	Notes      int             `json:"notes_total"`
	Comments   int             `json:"comments_total"`
	Errors     []string        `json:"errors,omitempty"`
	Aborted    string          `json:"aborted,omitempty"`
}

func (r *Report) recordError(err error) {
	r.Errors = append(r.Errors, err.Error())
}
