package documents

import (
	"context"
	"io"
	"time"
)

// Repository port (persistence for document records)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, owner string, id DocumentID) (*Document, error)
	Paginate(ctx context.Context, owner string, page, pageSize int) ([]*Document, error)
	UpdateAnalysisMeta(ctx context.Context, id DocumentID, score int, analyzedAt time.Time) error
}

// BlobStore port (upload side of the object store)
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// URLSigner port (authenticated delivery URLs for assets that are not
// publicly reachable)
type URLSigner interface {
	SignedURL(ctx context.Context, assetID, version string) (string, error)
}
