package repository

import (
	"context"
	"errors"

	"github.com/driss-b/infercore/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository is the dedup registry for ingested documents. It stores
// one record per (collection, document id) with the content hash of the last
// ingestion.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get returns the record for a document, or nil if it was never ingested.
func (r *DocumentRepository) Get(ctx context.Context, collection, documentID string) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	err := r.db.WithContext(ctx).
		First(&rec, "collection = ? AND document_id = ?", collection, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save creates or updates a document record.
func (r *DocumentRepository) Save(ctx context.Context, rec *domain.DocumentRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "document_id"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// DeleteByCollection removes all records for a collection (collection purge).
func (r *DocumentRepository) DeleteByCollection(ctx context.Context, collection string) error {
	return r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Delete(&domain.DocumentRecord{}).Error
}
