package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is immutable once ingested. Processing state lives in ProcessingRun.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type,omitempty"`
	RawContent string    `json:"raw_content"`
	CreatedAt  time.Time `json:"created_at"`
}

// CharRange is a half-open byte range [Start, End) into Document.RawContent.
type CharRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r CharRange) Len() int {
	return r.End - r.Start
}

type Segment struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	CharRange  CharRange `json:"char_range"`
	// Unbroken is set when no clean boundary was found and the segment was cut at the raw window edge.
	Unbroken bool `json:"unbroken,omitempty"`
}

type ProcessingRun struct {
	DocumentID string         `json:"document_id"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	Note       string         `json:"note,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type KnowledgeStats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalItems     int    `json:"total_items"`
	CollectionSize int    `json:"collection_size"`
	LastUpdated    string `json:"last_updated"`
	HealthStatus   string `json:"health_status"`
}

type SearchHit struct {
	DocumentID string   `json:"document_id"`
	Filename   string   `json:"filename"`
	ItemID     string   `json:"item_id"`
	Type       ItemType `json:"type"`
	Text       string   `json:"text"`
	Score      float64  `json:"score"`
}
