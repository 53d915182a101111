package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/store"
)

type staticCompleter struct {
	answer string
	calls  int
	fail   bool
}

func (c *staticCompleter) Complete(ctx context.Context, contextBlock, question string) (string, error) {
	c.calls++
	if c.fail {
		return "", fmt.Errorf("%w: service unavailable", models.ErrCompletion)
	}
	return c.answer, nil
}

func newTestServer(t *testing.T, completer *staticCompleter) *Server {
	t.Helper()
	cfg := config.Default()
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewMockEmbedder(16)
	ch, err := chunker.NewChunker(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		t.Fatal(err)
	}
	ing := ingest.NewIngestor(extract.NewExtractor(), ch, emb, st)
	ans := answer.NewAnswerer(emb, search.NewSearcher(st), completer, cfg.Search.TopK)
	return NewServer(ing, ans, st, cfg, zap.NewNop())
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleUpload(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "The capital of France is Paris."))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.DocumentID == "" || result.SegmentCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleUpload_RejectsExtension(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "malware.exe", "binary"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestHandleUpload_EmptyFile(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "empty.txt", "   "))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400 for whitespace-only document", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	completer := &staticCompleter{answer: "Paris is the capital."}
	srv := newTestServer(t, completer)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "The capital of France is Paris."))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/ask",
		models.QueryRequest{Question: "What is the capital of France?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Answer != "Paris is the capital." {
		t.Errorf("answer %q", result.Answer)
	}
	if len(result.Segments) == 0 {
		t.Error("expected grounding segments")
	}
	if completer.calls != 1 {
		t.Errorf("completer calls = %d, want 1", completer.calls)
	}
}

func TestHandleAsk_TruncatesSegmentText(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "long"})
	router := srv.Router()

	long := strings.Repeat("All work and no play makes Jack a dull boy. ", 20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "long.txt", long))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/ask",
		models.QueryRequest{Question: "What does Jack do?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var result models.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	for _, seg := range result.Segments {
		if n := len([]rune(strings.TrimSuffix(seg.Text, "..."))); n > displayTextRunes {
			t.Errorf("segment text %d runes, want <= %d", n, displayTextRunes)
		}
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/ask", models.QueryRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestHandleAsk_EmptyCorpus(t *testing.T) {
	completer := &staticCompleter{answer: "should not be called"}
	srv := newTestServer(t, completer)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/ask",
		models.QueryRequest{Question: "anything?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var result models.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Answer != answer.NoContextGlobal {
		t.Errorf("answer %q", result.Answer)
	}
	if completer.calls != 0 {
		t.Errorf("completer should not be called on empty retrieval, got %d calls", completer.calls)
	}
}

func TestHandleAsk_CompletionFailure(t *testing.T) {
	completer := &staticCompleter{fail: true}
	srv := newTestServer(t, completer)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "Some indexed content."))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/ask",
		models.QueryRequest{Question: "What content?"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", rec.Code)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "doc.txt", "Lifecycle test content."))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}
	var created models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listing struct {
		Documents []models.DocumentInfo `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Documents) != 1 || listing.Documents[0].ID != created.DocumentID {
		t.Errorf("unexpected listing: %+v", listing.Documents)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	var info models.DocumentInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Filename != "doc.txt" || info.SegmentCount != 1 {
		t.Errorf("unexpected info: %+v", info)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status %d, want 404", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status %d, want 404", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, &staticCompleter{answer: "ok"})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "doc.txt", "Status test content."))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var status struct {
		Documents  int `json:"documents"`
		Segments   int `json:"segments"`
		Dimensions int `json:"dimensions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Documents != 1 || status.Segments != 1 || status.Dimensions != 16 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestStatusFromErr(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrEmptyInput, http.StatusBadRequest},
		{models.ErrInvalidPolicy, http.StatusBadRequest},
		{models.ErrDimensionMismatch, http.StatusBadRequest},
		{models.ErrEmbedding, http.StatusBadGateway},
		{models.ErrCompletion, http.StatusBadGateway},
		{models.ErrStore, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", models.ErrNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := statusFromErr(tc.err); got != tc.want {
			t.Errorf("statusFromErr(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
