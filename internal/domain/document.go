package domain

import "time"

// DocumentRecord tracks the last ingested content hash of a document within a
// collection. It backs the dedup registry: re-ingesting an unchanged document
// is a no-op, a changed one replaces its prior chunks.
type DocumentRecord struct {
	Collection  string    `gorm:"type:text;primaryKey" json:"collection"`
	DocumentID  string    `gorm:"type:text;primaryKey" json:"document_id"`
	ContentHash string    `gorm:"type:text;not null;index" json:"content_hash"`
	ChunkCount  int       `gorm:"default:0" json:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// TableName returns the database table name for DocumentRecord.
func (DocumentRecord) TableName() string {
	return "documents"
}
