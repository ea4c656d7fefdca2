package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/embed"
	"github.com/insightdeck/insightdeck/internal/runtime"
	"github.com/insightdeck/insightdeck/internal/session"
	"github.com/insightdeck/insightdeck/pkg/httperr"
)

const salesCSV = "Region,Sales,Date\nWest,100,2024-01-05\nEast,200,2024-02-10\nWest,bad,2024-03-15\n"

// countingTransport fails every request and counts attempts.
type countingTransport struct {
	calls atomic.Int64
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected network call")
}

func newTestHandler(t *testing.T) (http.Handler, *countingTransport) {
	t.Helper()
	limits := runtime.NewLimits(8, 8)
	ctrl := runtime.NewController(limits)
	sessions := session.NewManager(time.Minute, time.Minute, ctrl, nil)
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	transport := &countingTransport{}
	relay := embed.NewRelay(embed.Config{}, &http.Client{Transport: transport}, zerolog.Nop())

	return NewServer(sessions, relay, ctrl, zerolog.Nop()).Handler(), transport
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return do(t, h, method, path, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]any](t, rec)
	id, _ := created["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func upload(t *testing.T, h http.Handler, id, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, h, http.MethodPost, "/api/sessions/"+id+"/dataset", &buf, mw.FormDataContentType())
}

func TestUploadAndSummary(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := upload(t, h, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[summaryResponse](t, rec)
	assert.True(t, resp.HasDataset)
	assert.Equal(t, int64(1), resp.DatasetVersion)
	assert.Equal(t, 3, resp.Summary.TotalRows)
	assert.InDelta(t, 300, resp.Summary.TotalSales, 1e-9)
	assert.InDelta(t, 100, resp.Summary.AvgSales, 1e-9)
	assert.Len(t, resp.Categories, 2)
	assert.Len(t, resp.Timeline, 3)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp, decode[summaryResponse](t, rec))
}

func TestUploadUnsupportedExtensionLeavesDataset(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	require.Equal(t, http.StatusOK, upload(t, h, id, "sales.csv", salesCSV).Code)

	rec := upload(t, h, id, "notes.txt", "free text, not a table")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[httperr.Response](t, rec)
	assert.Contains(t, resp.Error, "UNSUPPORTED_FORMAT")

	// Prior dataset is untouched.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/summary", nil)
	summary := decode[summaryResponse](t, rec)
	assert.Equal(t, 3, summary.Summary.TotalRows)
	assert.Equal(t, int64(1), summary.DatasetVersion)
}

func TestUpdateFilters(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)
	require.Equal(t, http.StatusOK, upload(t, h, id, "sales.csv", salesCSV).Code)

	rec := doJSON(t, h, http.MethodPut, "/api/sessions/"+id+"/filters", map[string]any{
		"bounds": map[string]any{"Sales": map[string]any{"min": 150}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[summaryResponse](t, rec)
	assert.Equal(t, 1, resp.Summary.TotalRows)
	assert.InDelta(t, 200, resp.Summary.TotalSales, 1e-9)

	// A malformed date is rejected.
	rec = doJSON(t, h, http.MethodPut, "/api/sessions/"+id+"/filters", map[string]any{
		"dateFrom": "febtober",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[httperr.Response](t, rec).Error, "dateFrom")
}

func TestRowsPaginationAndSort(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	var sb strings.Builder
	sb.WriteString("Region,Sales,Date\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&sb, "R%02d,%d,2024-01-%02d\n", i, i*10, (i%28)+1)
	}
	require.Equal(t, http.StatusOK, upload(t, h, id, "big.csv", sb.String()).Code)

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page1 := decode[rowsResponse](t, rec)
	require.Len(t, page1.Rows, 10)
	assert.Equal(t, 25, page1.TotalRows)
	assert.Equal(t, 0, page1.Offset)
	assert.Equal(t, "R01", page1.Rows[0]["Region"])
	require.NotEmpty(t, page1.NextCursor)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows?cursor="+page1.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page2 := decode[rowsResponse](t, rec)
	require.Len(t, page2.Rows, 10)
	assert.Equal(t, 10, page2.Offset)
	assert.Equal(t, "R11", page2.Rows[0]["Region"])

	// Third page is the remainder and carries no cursor.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows?cursor="+page2.NextCursor, nil)
	page3 := decode[rowsResponse](t, rec)
	require.Len(t, page3.Rows, 5)
	assert.Empty(t, page3.NextCursor)

	// Numeric sort descending puts the largest value first.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows?sort=Sales&dir=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sorted := decode[rowsResponse](t, rec)
	assert.Equal(t, "250", sorted.Rows[0]["Sales"])

	// Unknown sort field is rejected.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows?sort=Nope", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRowsCursorInvalidAfterReupload(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	var sb strings.Builder
	sb.WriteString("Region,Sales\n")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, "R%d,%d\n", i, i)
	}
	require.Equal(t, http.StatusOK, upload(t, h, id, "a.csv", sb.String()).Code)

	page1 := decode[rowsResponse](t, doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows", nil))
	require.NotEmpty(t, page1.NextCursor)

	require.Equal(t, http.StatusOK, upload(t, h, id, "b.csv", sb.String()).Code)

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/rows?cursor="+page1.NextCursor, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[httperr.Response](t, rec).Error, "CURSOR_INVALID")
}

func TestExport(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)
	require.Equal(t, http.StatusOK, upload(t, h, id, "sales.csv", salesCSV).Code)

	// Filter down, then export only the surviving rows.
	rec := doJSON(t, h, http.MethodPut, "/api/sessions/"+id+"/filters", map[string]any{"query": "east"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+id+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dashboard-export.csv")
	assert.Equal(t, "Region,Sales,Date\nEast,200,2024-02-10\n", rec.Body.String())
}

func TestExportWithoutDataset(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)
	rec := do(t, h, http.MethodGet, "/api/sessions/"+id+"/export", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetClearsEverything(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)
	require.Equal(t, http.StatusOK, upload(t, h, id, "sales.csv", salesCSV).Code)

	rec := doJSON(t, h, http.MethodPut, "/api/sessions/"+id+"/filters", map[string]any{"query": "west"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPut, "/api/sessions/"+id+"/embed", map[string]any{"visible": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[summaryResponse](t, rec).EmbedVisible)

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[summaryResponse](t, rec)
	assert.False(t, resp.HasDataset)
	assert.False(t, resp.EmbedVisible)
	assert.Zero(t, resp.Summary.TotalRows)
	assert.Empty(t, resp.Categories)
}

func TestEmbedTokenConfigIncomplete(t *testing.T) {
	h, transport := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/embed-token", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[httperr.Response](t, rec)
	assert.Contains(t, resp.Error, "CONFIG_INCOMPLETE")
	assert.NotEmpty(t, resp.Error)

	// Fails fast: no outbound calls were attempted.
	assert.Equal(t, int64(0), transport.calls.Load())
}

func TestSessionNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/sessions/nope/summary", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[httperr.Response](t, rec).Error, "SESSION_NOT_FOUND")
}

func TestDeleteSession(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/summary", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}
