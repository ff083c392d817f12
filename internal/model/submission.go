package model

import "time"

// SubmissionStatus mirrors the batch status reported by the ledger.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "PENDING"
	StatusCommitted SubmissionStatus = "COMMITTED"
	StatusInvalid   SubmissionStatus = "INVALID"
	StatusUnknown   SubmissionStatus = "UNKNOWN"
)

// Terminal reports whether the ledger will not change the status again.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusInvalid
}

// Submission is one batch accepted by the ledger for a record.
type Submission struct {
	BatchID      string           `gorm:"primaryKey;size:128" json:"batchId"`
	RecordID     string           `gorm:"index;size:256;not null" json:"recordId"`
	RecordType   string           `gorm:"size:64;not null" json:"recordType"`
	Transactions int              `gorm:"not null" json:"transactions"`
	Proposals    int              `gorm:"not null" json:"proposals"`
	Status       SubmissionStatus `gorm:"size:16;not null;index" json:"status"`
	Message      string           `gorm:"size:1024" json:"message,omitempty"`
	SubmittedAt  time.Time        `gorm:"not null" json:"submittedAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`

	// Attempts counts status queries that came back without a final status.
	// CheckedAt is the time of the last one, or SubmittedAt before any.
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	CheckedAt time.Time `gorm:"index" json:"checkedAt"`
}
