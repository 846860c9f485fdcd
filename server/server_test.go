package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
	"github.com/mywind/docsearch/internal/types"
	"github.com/mywind/docsearch/pkg/extract"
	"github.com/mywind/docsearch/pkg/rag"
	"github.com/mywind/docsearch/server"
)

type stubOCR struct {
	result models.Recognition
}

func (o *stubOCR) Name() string { return "stub" }

func (o *stubOCR) Recognize(ctx context.Context, image []byte) (models.Recognition, error) {
	return o.result, nil
}

type stubDoc struct {
	pages int
}

func (d *stubDoc) PageCount() int { return d.pages }

func (d *stubDoc) RenderPage(page int) ([]byte, error) {
	return []byte(fmt.Sprintf("page-%d", page+1)), nil
}

func (d *stubDoc) Close() error { return nil }

type stubRenderer struct {
	pages int
}

func (r *stubRenderer) Open(data []byte) (types.RenderedDocument, error) {
	return &stubDoc{pages: r.pages}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type stubStore struct {
	hits []models.StoreHit
}

func (s *stubStore) Add(ctx context.Context, chunks []models.IndexedChunk) error { return nil }

func (s *stubStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]models.StoreHit, error) {
	return s.hits, nil
}

func (s *stubStore) Count(ctx context.Context) (int, error) { return len(s.hits), nil }
func (s *stubStore) Location() string                       { return "stub://store" }
func (s *stubStore) Close() error                           { return nil }

type serverOptions struct {
	renderer types.PageRenderer
	embedder types.Embedder
	store    types.VectorStore
	table    types.TableEngine
	ocr      types.OCREngine
}

func newTestServer(t *testing.T, opts serverOptions) http.Handler {
	t.Helper()

	if opts.ocr == nil {
		opts.ocr = &stubOCR{result: models.Recognition{Text: "recognized text", Confidence: 88}}
	}

	extractor := extract.New(extract.Config{}, opts.ocr, opts.renderer, zap.NewNop())
	ragService, err := rag.NewService(rag.ServiceConfig{}, opts.embedder, opts.store, zap.NewNop())
	require.NoError(t, err)

	srv, err := server.New(server.Config{}, extractor, ragService, opts.table, zap.NewNop())
	require.NoError(t, err)
	return srv.Handler()
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

const echoContentType = "Content-Type"

func TestHealth(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		renderer: &stubRenderer{pages: 1},
		embedder: stubEmbedder{},
		store:    &stubStore{},
	})

	rec, body := doJSON(t, handler, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "stub", body["ocr_engine"])
	assert.Equal(t, true, body["pdf_support"])
	assert.Equal(t, false, body["table_support"])
	assert.Equal(t, true, body["rag_support"])
}

func TestHealthDegraded(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	rec, body := doJSON(t, handler, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["pdf_support"])
	assert.Equal(t, false, body["rag_support"])
}

func TestOCRImage(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	buf, contentType := multipartUpload(t, "scan.png", "image/png", []byte("fake image"), nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "recognized text", body["text"])
	assert.InDelta(t, 88.0, body["confidence"].(float64), 0.001)
}

func TestOCRImageRejectsNonImage(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	buf, contentType := multipartUpload(t, "doc.txt", "text/plain", []byte("hello"), nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRImageRequiresFile(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodPost, "/ocr/image", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRPDF(t *testing.T) {
	handler := newTestServer(t, serverOptions{renderer: &stubRenderer{pages: 4}})

	buf, contentType := multipartUpload(t, "report.pdf", "application/pdf", []byte("%PDF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr/pdf", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 4.0, body["pages"])
	assert.Contains(t, body["text"], "--- page 1 ---")
}

func TestOCRPDFMaxPagesOverride(t *testing.T) {
	handler := newTestServer(t, serverOptions{renderer: &stubRenderer{pages: 10}})

	buf, contentType := multipartUpload(t, "report.pdf", "application/pdf", []byte("%PDF"), map[string]string{"max_pages": "2"})
	req := httptest.NewRequest(http.MethodPost, "/ocr/pdf", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body["pages"])
}

func TestOCRPDFWithoutRenderer(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	buf, contentType := multipartUpload(t, "report.pdf", "application/pdf", []byte("%PDF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr/pdf", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOCRTableNotImplemented(t *testing.T) {
	handler := newTestServer(t, serverOptions{})

	buf, contentType := multipartUpload(t, "table.png", "image/png", []byte("fake"), nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr/table", buf)
	req.Header.Set(echoContentType, contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestIndexEndpoint(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		embedder: stubEmbedder{},
		store:    &stubStore{},
	})

	rec, body := doJSON(t, handler, http.MethodPost, "/index",
		`{"content": "a perfectly reasonable amount of document content", "source": "hkexnews"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1.0, body["chunks_indexed"])
}

func TestIndexEndpointShortContent(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		embedder: stubEmbedder{},
		store:    &stubStore{},
	})

	rec, body := doJSON(t, handler, http.MethodPost, "/index", `{"content": "tiny"}`)

	// Rejection is reported in the payload, not the status code
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "content too short", body["error"])
}

func TestSearchEndpoint(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		embedder: stubEmbedder{},
		store: &stubStore{hits: []models.StoreHit{
			{Content: "interim results", Distance: 0.2, Metadata: map[string]interface{}{"source": "hkexnews"}},
		}},
	})

	rec, body := doJSON(t, handler, http.MethodPost, "/search", `{"query": "results"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "results", body["query"])
	assert.Equal(t, 1.0, body["count"])

	results := body["results"].([]interface{})
	hit := results[0].(map[string]interface{})
	assert.Equal(t, "interim results", hit["content"])
	assert.InDelta(t, 0.8, hit["score"].(float64), 0.001)
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		embedder: stubEmbedder{},
		store:    &stubStore{},
	})

	rec, body := doJSON(t, handler, http.MethodPost, "/search", `{"query": ""}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 0.0, body["count"])
	assert.Equal(t, []interface{}{}, body["results"])
}

func TestStatsEndpoint(t *testing.T) {
	handler := newTestServer(t, serverOptions{
		embedder: stubEmbedder{},
		store:    &stubStore{hits: []models.StoreHit{{Content: "a"}, {Content: "b"}}},
	})

	rec, body := doJSON(t, handler, http.MethodGet, "/rag/stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["total_documents"])
	assert.Equal(t, "stub://store", body["storage_location"])
	assert.Equal(t, true, body["store_available"])
}
