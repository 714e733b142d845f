package documents

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/application"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

// Service implements the document use-cases: upload to the blob store plus
// the owner-scoped listing the UI needs.
type Service struct {
	Repo   domain.Repository
	Blobs  domain.BlobStore
	Clock  application.Clock
	Logger *zap.Logger

	MaxFileBytes int64
}

type UploadCommand struct {
	OwnerID  string
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Upload stores the bytes and creates the document record.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Document, error) {
	if cmd.Size > s.MaxFileBytes {
		return nil, analysis.ErrFileTooLarge
	}

	now := s.Clock.Now()
	id := uuid.New().String()
	key := fmt.Sprintf("%s/%s%s", cmd.OwnerID, id, safeExt(cmd.FileName))

	url, err := s.Blobs.Upload(ctx, key, cmd.Body, cmd.Size, cmd.MimeType)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	doc := &domain.Document{
		ID:         domain.DocumentID(id),
		OwnerID:    cmd.OwnerID,
		FileName:   cmd.FileName,
		AssetID:    key,
		Version:    fmt.Sprintf("%d", now.Unix()),
		FileURL:    url,
		MimeType:   cmd.MimeType,
		SizeBytes:  cmd.Size,
		UploadedAt: now,
	}
	if err := s.Repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.Logger.Info("document uploaded",
		zap.String("document_id", id),
		zap.String("owner_id", cmd.OwnerID),
		zap.Int64("size_bytes", cmd.Size),
	)
	return doc, nil
}

// List returns a page of the owner's documents, newest first.
func (s *Service) List(ctx context.Context, owner string, page, pageSize int) ([]*domain.Document, error) {
	return s.Repo.Paginate(ctx, owner, page, pageSize)
}

// Get returns one document or analysis.ErrDocumentNotFound.
func (s *Service) Get(ctx context.Context, owner string, id domain.DocumentID) (*domain.Document, error) {
	doc, err := s.Repo.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, analysis.ErrDocumentNotFound
	}
	return doc, nil
}

// safeExt keeps the original extension on the object key, nothing else from
// the user-supplied name.
func safeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
