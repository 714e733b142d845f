package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Save inserts or updates a document record
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
  (id, owner_id, file_name, asset_id, version, file_url, mime_type, size_bytes, uploaded_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  file_name=VALUES(file_name), asset_id=VALUES(asset_id), version=VALUES(version),
  file_url=VALUES(file_url), mime_type=VALUES(mime_type), size_bytes=VALUES(size_bytes);
`
	uploadedAt := d.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.OwnerID, d.FileName, d.AssetID, d.Version,
		d.FileURL, d.MimeType, d.SizeBytes, uploadedAt,
	)
	return err
}

// Get returns one document scoped to its owner; nil when absent
func (r *DocumentRepository) Get(ctx context.Context, owner string, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT id, owner_id, file_name, asset_id, version, file_url, mime_type, size_bytes,
       last_score, last_analyzed_at, uploaded_at
FROM documents
WHERE owner_id=? AND id=?;
`
	var d domain.Document
	var lastScore sql.NullInt64
	var lastAnalyzed sql.NullTime
	err := r.db.QueryRowContext(ctx, q, owner, id).Scan(
		&d.ID, &d.OwnerID, &d.FileName, &d.AssetID, &d.Version,
		&d.FileURL, &d.MimeType, &d.SizeBytes,
		&lastScore, &lastAnalyzed, &d.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastScore.Valid {
		v := int(lastScore.Int64)
		d.LastScore = &v
	}
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		d.LastAnalyzedAt = &t
	}
	return &d, nil
}

// Paginate returns a page of an owner's documents, newest first
func (r *DocumentRepository) Paginate(ctx context.Context, owner string, page, pageSize int) ([]*domain.Document, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, owner_id, file_name, asset_id, version, file_url, mime_type, size_bytes,
       last_score, last_analyzed_at, uploaded_at
FROM documents
WHERE owner_id=?
ORDER BY uploaded_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, owner, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		var d domain.Document
		var lastScore sql.NullInt64
		var lastAnalyzed sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.OwnerID, &d.FileName, &d.AssetID, &d.Version,
			&d.FileURL, &d.MimeType, &d.SizeBytes,
			&lastScore, &lastAnalyzed, &d.UploadedAt,
		); err != nil {
			return nil, err
		}
		if lastScore.Valid {
			v := int(lastScore.Int64)
			d.LastScore = &v
		}
		if lastAnalyzed.Valid {
			t := lastAnalyzed.Time
			d.LastAnalyzedAt = &t
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// UpdateAnalysisMeta caches the most recent score on the document row
func (r *DocumentRepository) UpdateAnalysisMeta(ctx context.Context, id domain.DocumentID, score int, analyzedAt time.Time) error {
	const q = `UPDATE documents SET last_score=?, last_analyzed_at=? WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, score, analyzedAt, id)
	return err
}
