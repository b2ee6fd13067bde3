package model

import "time"

// Content is a unique piece of translatable text.
type Content struct {
	ContentID int64
	Value     string
	CreatedAt time.Time
}

// Source associates an application-supplied business identifier with content.
type Source struct {
	BusinessID  string
	ContentID   int64
	ContextHash string
	LastSeenAt  time.Time
}
