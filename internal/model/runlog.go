package model

import "time"

// RunLog is the audit record of one acquisition pass.
type RunLog struct {
	ID                 string    `json:"id"`
	Source             string    `json:"source"`
	StartedAt          time.Time `json:"start"`
	FinishedAt         time.Time `json:"end"`
	PagesProcessed     int       `json:"pages_processed"`
	RecordsFound       int       `json:"found"`
	RecordsNew         int       `json:"new"`
	RecordsUpdated     int       `json:"updated"`
	Errors             int       `json:"errors"`
	ExtractionFailures int       `json:"extraction_failures"`
	Success            bool      `json:"success"`
	ErrorMessage       string    `json:"error_message"`
	ElapsedSeconds     float64   `json:"elapsed_seconds"`
}

// Finalize stamps the end of the pass. Calling it twice keeps the first stamp.
func (l *RunLog) Finalize(now time.Time, err error) {
	if !l.FinishedAt.IsZero() {
		return
	}
	l.FinishedAt = now
	l.ElapsedSeconds = now.Sub(l.StartedAt).Seconds()
	l.Success = err == nil
	if err != nil {
		l.ErrorMessage = err.Error()
	}
}
