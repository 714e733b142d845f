package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
)

type fakeSigner struct {
	url   string
	err   error
	calls int
}

func (f *fakeSigner) SignedURL(ctx context.Context, assetID, version string) (string, error) {
	f.calls++
	return f.url, f.err
}

func testDoc(fileURL string) *documents.Document {
	return &documents.Document{
		ID:       "doc-1",
		OwnerID:  "owner-1",
		AssetID:  "asset-1",
		Version:  "1700000000",
		FileURL:  fileURL,
		MimeType: "application/pdf",
	}
}

func newTestResolver(signer documents.URLSigner, maxBytes int64) *Resolver {
	return NewResolver(nil, signer, maxBytes, zap.NewNop())
}

func TestResolveInline(t *testing.T) {
	r := newTestResolver(&fakeSigner{}, 1024)
	payload := base64.StdEncoding.EncodeToString([]byte("resume body"))

	data, mime, err := r.Resolve(context.Background(), testDoc("http://unused"), payload, "text/plain")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "resume body" {
		t.Errorf("data = %q", data)
	}
	if mime != "text/plain" {
		t.Errorf("mime = %q, want text/plain", mime)
	}
}

func TestResolveInlineMimeDefaultsToDocument(t *testing.T) {
	r := newTestResolver(&fakeSigner{}, 1024)
	payload := base64.StdEncoding.EncodeToString([]byte("resume body"))

	_, mime, err := r.Resolve(context.Background(), testDoc("http://unused"), payload, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mime != "application/pdf" {
		t.Errorf("mime = %q, want the document's recorded type", mime)
	}
}

func TestResolveInlineBadBase64(t *testing.T) {
	r := newTestResolver(&fakeSigner{}, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc("http://unused"), "%%%not-base64%%%", "")
	if !errors.Is(err, analysis.ErrInvalidInlineData) {
		t.Fatalf("err = %v, want invalid inline data", err)
	}
}

func TestResolveInlineTooLarge(t *testing.T) {
	r := newTestResolver(&fakeSigner{}, 4)
	payload := base64.StdEncoding.EncodeToString([]byte("more than four bytes"))

	_, _, err := r.Resolve(context.Background(), testDoc("http://unused"), payload, "")
	if !errors.Is(err, analysis.ErrFileTooLarge) {
		t.Fatalf("err = %v, want file too large", err)
	}
}

func TestResolvePublicFetch(t *testing.T) {
	body := "pdf bytes here"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodHead:
			w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		case http.MethodGet:
			fmt.Fprint(w, body)
		}
	}))
	defer srv.Close()

	signer := &fakeSigner{}
	r := newTestResolver(signer, 1024)

	data, mime, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != body {
		t.Errorf("data = %q", data)
	}
	if mime != "application/pdf" {
		t.Errorf("mime = %q", mime)
	}
	if signer.calls != 0 {
		t.Error("signer must not be consulted when the public URL probes fine")
	}
}

func TestResolveLegacyURLRewrite(t *testing.T) {
	var probedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodHead {
			probedPath = req.URL.Path
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	r := newTestResolver(&fakeSigner{}, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/image/upload/doc.pdf"), "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if probedPath != "/raw/upload/doc.pdf" {
		t.Errorf("probed %q, want the raw delivery path", probedPath)
	}
}

func TestResolveLegacyRewriteSkipsImages(t *testing.T) {
	var probedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodHead {
			probedPath = req.URL.Path
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	doc := testDoc(srv.URL + "/image/upload/photo.png")
	doc.MimeType = "image/png"
	r := newTestResolver(&fakeSigner{}, 1024)

	_, _, err := r.Resolve(context.Background(), doc, "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if probedPath != "/image/upload/photo.png" {
		t.Errorf("probed %q, image URLs must not be rewritten", probedPath)
	}
}

func TestResolveFallsBackToSignedURL(t *testing.T) {
	body := "private pdf"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.Contains(req.URL.RawQuery, "sig=ok") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method == http.MethodGet {
			fmt.Fprint(w, body)
		}
	}))
	defer srv.Close()

	signer := &fakeSigner{url: srv.URL + "/raw/upload/doc.pdf?sig=ok"}
	r := newTestResolver(signer, 1024)

	data, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != body {
		t.Errorf("data = %q", data)
	}
	if signer.calls != 1 {
		t.Errorf("signer calls = %d, want 1", signer.calls)
	}
}

func TestResolveNeitherURLReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	signer := &fakeSigner{url: srv.URL + "/raw/upload/doc.pdf?sig=ok"}
	r := newTestResolver(signer, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if !errors.Is(err, analysis.ErrFetchFailed) {
		t.Fatalf("err = %v, want fetch failed", err)
	}
}

func TestResolveSignerFailureIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	signer := &fakeSigner{err: errors.New("no credentials")}
	r := newTestResolver(signer, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if !errors.Is(err, analysis.ErrFetchFailed) {
		t.Fatalf("err = %v, want fetch failed", err)
	}
}

func TestResolveRejectsOversizeByContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Length", "2048")
		if req.Method == http.MethodGet {
			t.Error("oversized document must not be downloaded")
		}
	}))
	defer srv.Close()

	r := newTestResolver(&fakeSigner{}, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if !errors.Is(err, analysis.ErrFileTooLarge) {
		t.Fatalf("err = %v, want file too large", err)
	}
}

func TestResolveRejectsOversizeBody(t *testing.T) {
	// HEAD reports no length; the GET body overflows the cap.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			fmt.Fprint(w, strings.Repeat("x", 2048))
		}
	}))
	defer srv.Close()

	r := newTestResolver(&fakeSigner{}, 1024)

	_, _, err := r.Resolve(context.Background(), testDoc(srv.URL+"/raw/upload/doc.pdf"), "", "")
	if !errors.Is(err, analysis.ErrFileTooLarge) {
		t.Fatalf("err = %v, want file too large", err)
	}
}
