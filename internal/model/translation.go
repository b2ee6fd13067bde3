package model

import "time"

// Translation is one unit of work: content x target language x context.
type Translation struct {
	TranslationID  int64
	ContentID      int64
	SourceLang     *string // nil = auto-detect
	TargetLang     string
	ContextHash    string
	ContextJSON    *string
	TranslatedText *string
	EngineName     *string
	EngineVersion  *string
	Status         Status
	LastUpdatedAt  time.Time
}

// DeadLetter mirrors a translation whose retries were exhausted.
type DeadLetter struct {
	DeadLetterID  int64     `json:"dead_letter_id"`
	TranslationID int64     `json:"translation_id"`
	ContentID     int64     `json:"content_id"`
	TargetLang    string    `json:"target_lang"`
	ContextHash   string    `json:"context_hash"`
	LastError     string    `json:"last_error"`
	Attempts      int       `json:"attempts"`
	MovedAt       time.Time `json:"moved_at"`
}
