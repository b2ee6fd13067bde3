package model

// Status is the lifecycle state of a translation row.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusTranslating Status = "TRANSLATING"
	StatusTranslated  Status = "TRANSLATED"
	StatusFailed      Status = "FAILED"
	// StatusApproved is reserved for review workflows; the core never writes it.
	StatusApproved Status = "APPROVED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTranslating, StatusTranslated, StatusFailed, StatusApproved:
		return true
	}
	return false
}

// Terminal reports whether s ends the processing lifecycle of a row.
// FAILED rows remain re-queueable, so only TRANSLATED is terminal here.
func (s Status) Terminal() bool {
	return s == StatusTranslated
}
