package documents

import "time"

// DocumentID identifier type
type DocumentID string

// Document is the stored résumé record. The bytes themselves live in the
// blob store; this row carries delivery metadata plus the cached result of
// the most recent analysis.
type Document struct {
	ID             DocumentID `json:"id"`
	OwnerID        string     `json:"owner_id"`
	FileName       string     `json:"file_name"`
	AssetID        string     `json:"asset_id"` // object key in the blob store
	Version        string     `json:"version"`  // delivery version used for signed URLs
	FileURL        string     `json:"file_url"`
	MimeType       string     `json:"mime_type"`
	SizeBytes      int64      `json:"size_bytes"`
	LastScore      *int       `json:"last_score,omitempty"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
}
