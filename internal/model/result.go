package model

// ContentItem is one claimed row handed to the processing pipeline.
type ContentItem struct {
	TranslationID int64
	ContentID     int64
	Value         string
	ContextHash   string
	Context       Context
}

// TranslationResult is the outcome of processing (or looking up) one item.
type TranslationResult struct {
	OriginalContent   string  `json:"original_content"`
	TranslatedContent *string `json:"translated_content,omitempty"`
	TargetLang        string  `json:"target_lang"`
	Status            Status  `json:"status"`
	Engine            *string `json:"engine,omitempty"`
	FromCache         bool    `json:"from_cache"`
	Error             *string `json:"error,omitempty"`
	ContextHash       string  `json:"context_hash"`
	BusinessID        *string `json:"business_id,omitempty"`
}

// GCReport counts the rows removed (or removable, for dry runs) by a GC pass.
type GCReport struct {
	DeletedSources      int64 `json:"deleted_sources"`
	DeletedContent      int64 `json:"deleted_content"`
	DeletedTranslations int64 `json:"deleted_translations"`
}
