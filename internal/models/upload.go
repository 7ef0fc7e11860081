package models

// UploadSummary reports the outcome of a bulk import.
type UploadSummary struct {
	BatchID       string   `json:"batch_id"`
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"error_messages"`
}

// RowOutcome is the result of importing one CSV row or ZIP entry.
type RowOutcome string

const (
	RowCreated RowOutcome = "created"
	RowUpdated RowOutcome = "updated"
	RowSkipped RowOutcome = "skipped"
	RowFailed  RowOutcome = "error"
)
