package server

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragserver/internal/domain"
	"ragserver/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRAG struct {
	ingestRes service.IngestResult
	ingestErr error
	answer    service.Answer
	queryErr  error
	events    []domain.AnswerEvent
	streamErr error

	lastFilename string
	lastQuery    string
	lastTopK     int
}

func (f *fakeRAG) Ingest(ctx context.Context, filename string, content io.Reader) (service.IngestResult, error) {
	f.lastFilename = filename
	_, _ = io.ReadAll(content)
	return f.ingestRes, f.ingestErr
}

func (f *fakeRAG) Query(ctx context.Context, query string, topK int) (service.Answer, error) {
	f.lastQuery, f.lastTopK = query, topK
	return f.answer, f.queryErr
}

func (f *fakeRAG) stream(ctx context.Context) (<-chan domain.AnswerEvent, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan domain.AnswerEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeRAG) QueryStream(ctx context.Context, query string, topK int) (<-chan domain.AnswerEvent, error) {
	f.lastQuery, f.lastTopK = query, topK
	return f.stream(ctx)
}

func (f *fakeRAG) ChatStream(ctx context.Context, query string) (<-chan domain.AnswerEvent, error) {
	f.lastQuery = query
	return f.stream(ctx)
}

func doForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

func TestUploadSuccess(t *testing.T) {
	rag := &fakeRAG{ingestRes: service.IngestResult{ID: "base-id", Filename: "doc.txt", Chunks: 4}}
	srv := New(rag)

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "doc.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("document body"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w.Body.String())
	assert.Equal(t, "base-id", body["id"])
	assert.Equal(t, "doc.txt", body["filename"])
	assert.Equal(t, "File uploaded and vectorized into 4 chunks.", body["message"])
	assert.Equal(t, "doc.txt", rag.lastFilename)
}

func TestUploadMissingFileField(t *testing.T) {
	srv := New(&fakeRAG{})
	w := doForm(t, srv.Handler(), "/upload/", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeJSON(t, w.Body.String())["detail"], "file")
}

func TestUploadValidationErrorMaps400(t *testing.T) {
	rag := &fakeRAG{ingestErr: domain.Errorf(domain.InvalidInput, "no extractable text found in the uploaded file")}
	srv := New(rag)

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "empty.txt")
	_, _ = part.Write([]byte(" "))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no extractable text found in the uploaded file", decodeJSON(t, w.Body.String())["detail"])
}

func TestChatFileSuccess(t *testing.T) {
	score := 0.42
	rag := &fakeRAG{answer: service.Answer{
		Answer:  "the answer",
		Sources: []domain.Source{{Filename: "a.txt", Score: &score, Text: "preview"}},
	}}
	srv := New(rag)

	w := doForm(t, srv.Handler(), "/chat-file/", url.Values{"query": {"what?"}, "n_results": {"7"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w.Body.String())
	assert.Equal(t, "the answer", body["answer"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "what?", rag.lastQuery)
	assert.Equal(t, 7, rag.lastTopK)
}

func TestChatFileMissingQuery(t *testing.T) {
	srv := New(&fakeRAG{})
	w := doForm(t, srv.Handler(), "/chat-file/", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatFileFailureMaps500(t *testing.T) {
	rag := &fakeRAG{queryErr: domain.Errorf(domain.Provider, "model unavailable")}
	srv := New(rag)
	w := doForm(t, srv.Handler(), "/chat-file/", url.Values{"query": {"q"}})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeJSON(t, w.Body.String())["detail"], "chat-file failed")
}

func TestChatFileDefaultTopK(t *testing.T) {
	rag := &fakeRAG{answer: service.Answer{Answer: "a", Sources: []domain.Source{}}}
	srv := New(rag)
	doForm(t, srv.Handler(), "/chat-file/", url.Values{"query": {"q"}})
	assert.Equal(t, 3, rag.lastTopK)
}

func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m))
		events = append(events, m)
	}
	return events
}

func TestChatFileStream(t *testing.T) {
	rag := &fakeRAG{events: []domain.AnswerEvent{
		{Content: "Hel"},
		{Content: "lo"},
		{Done: true, Sources: []domain.Source{{Filename: "a.txt"}, {Filename: "b.txt"}}},
	}}
	srv := New(rag)

	w := doForm(t, srv.Handler(), "/chat-file-stream/", url.Values{"query": {"q"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "Hel", events[0]["content"])
	assert.Equal(t, "lo", events[1]["content"])
	assert.Equal(t, true, events[2]["done"])
	assert.Len(t, events[2]["sources"], 2)
}

func TestChatFileStreamErrorEvent(t *testing.T) {
	rag := &fakeRAG{events: []domain.AnswerEvent{
		{Content: "part"},
		{Err: "model unavailable"},
	}}
	srv := New(rag)

	w := doForm(t, srv.Handler(), "/chat-file-stream/", url.Values{"query": {"q"}})
	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "model unavailable", events[1]["error"])
}

func TestChatFileStreamPreStreamFailure(t *testing.T) {
	rag := &fakeRAG{streamErr: domain.Errorf(domain.Provider, "down")}
	srv := New(rag)
	w := doForm(t, srv.Handler(), "/chat-file-stream/", url.Values{"query": {"q"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatStream(t *testing.T) {
	rag := &fakeRAG{events: []domain.AnswerEvent{{Content: "hi"}}}
	srv := New(rag)

	w := doForm(t, srv.Handler(), "/chat/", url.Values{"query": {"hello"}})
	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0]["content"])
	assert.Equal(t, "hello", rag.lastQuery)
}

func TestHealthz(t *testing.T) {
	srv := New(&fakeRAG{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
