package delivery

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

// Resolver turns a document record into bytes: inline payload when supplied,
// otherwise a probed fetch from the blob delivery paths.
type Resolver struct {
	httpClient *http.Client
	signer     documents.URLSigner
	maxBytes   int64
	logger     *zap.Logger
}

func NewResolver(client *http.Client, signer documents.URLSigner, maxBytes int64, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{httpClient: client, signer: signer, maxBytes: maxBytes, logger: logger}
}

// Resolve returns the document bytes and their mime type. inlineData is a
// caller-supplied base64 body; when present it short-circuits the fetch.
func (r *Resolver) Resolve(ctx context.Context, doc *documents.Document, inlineData, inlineMime string) ([]byte, string, error) {
	if inlineData != "" {
		return r.decodeInline(doc, inlineData, inlineMime)
	}

	url := rewriteLegacyDocumentURL(doc.FileURL, doc.MimeType)

	ok, size, err := r.probe(ctx, url)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", analysis.ErrFetchFailed, err)
	}
	if !ok {
		signed, serr := r.signer.SignedURL(ctx, doc.AssetID, doc.Version)
		if serr != nil {
			return nil, "", fmt.Errorf("%w: sign url: %v", analysis.ErrFetchFailed, serr)
		}
		r.logger.Debug("public delivery not reachable, retrying signed",
			zap.String("document_id", string(doc.ID)),
		)
		ok, size, err = r.probe(ctx, signed)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", analysis.ErrFetchFailed, err)
		}
		if !ok {
			return nil, "", fmt.Errorf("%w: neither public nor signed delivery reachable", analysis.ErrFetchFailed)
		}
		url = signed
	}

	if size > 0 && size > r.maxBytes {
		return nil, "", fmt.Errorf("%w: reported %d bytes", analysis.ErrFileTooLarge, size)
	}

	data, err := r.download(ctx, url)
	if err != nil {
		return nil, "", err
	}
	return data, doc.MimeType, nil
}

func (r *Resolver) decodeInline(doc *documents.Document, inlineData, inlineMime string) ([]byte, string, error) {
	data, err := base64.StdEncoding.DecodeString(inlineData)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", analysis.ErrInvalidInlineData, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, "", fmt.Errorf("%w: inline payload is %d bytes", analysis.ErrFileTooLarge, len(data))
	}
	mime := inlineMime
	if mime == "" {
		mime = doc.MimeType
	}
	return data, mime, nil
}

// probe performs a lightweight existence check. A body fetch is only ever
// issued against a URL that probed successfully.
func (r *Resolver) probe(ctx context.Context, url string) (bool, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, 0, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, 0, nil
	}
	return true, resp.ContentLength, nil
}

func (r *Resolver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrFetchFailed, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", analysis.ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrFetchFailed, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: download exceeded %d bytes", analysis.ErrFileTooLarge, r.maxBytes)
	}
	return data, nil
}

// rewriteLegacyDocumentURL corrects the older delivery shape where documents
// were stored under the image path. Document mime types must be served from
// the raw path.
func rewriteLegacyDocumentURL(url, mimeType string) string {
	if !isDocumentMime(mimeType) {
		return url
	}
	return strings.Replace(url, "/image/upload/", "/raw/upload/", 1)
}

func isDocumentMime(mimeType string) bool {
	mime := strings.ToLower(mimeType)
	switch {
	case mime == "application/pdf",
		mime == "application/msword",
		strings.HasPrefix(mime, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mime, "text/"):
		return true
	}
	return false
}
