package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/CutYield/internal/model"
	"github.com/piwi3910/CutYield/internal/project"
)

type memoryRunStore struct {
	mu        sync.Mutex
	runs      []project.Run
	recordErr error
}

func (m *memoryRunStore) Record(_ context.Context, run project.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRunStore) List(_ context.Context, limit int) ([]project.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]project.Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, opts ...HandlerOption) *Handler {
	t.Helper()
	opts = append([]HandlerOption{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewHandler(model.NewStockSheet("Sheet", 3500, 2500), model.DefaultKerf, zaptest.NewLogger(t), opts...)
}

func serve(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const defaultPieceList = `{"piece_list": "1\n1200x900\n45\n150x500"}`

func TestHandleHealth(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Timestamp.Equal(fixedTime))
}

func TestHandleOptimize_PieceList(t *testing.T) {
	store := &memoryRunStore{}
	router := NewRouter(newTestHandler(t, WithHistory(store)), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodPost, "/api/optimize", defaultPieceList)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[optimizeResponse](t, rec)

	assert.Equal(t, 46, resp.Placed)
	assert.Equal(t, 46, resp.Requested)
	assert.True(t, resp.Complete)
	assert.Equal(t, "Yield: 50.91% | Placed: 46/46", resp.Headline)
	assert.Equal(t, 3500.0, resp.SheetWidth)
	assert.Equal(t, model.DefaultKerf, resp.Kerf)
	assert.Empty(t, resp.Unplaced)
	require.Len(t, resp.Placements, 46)
	assert.Equal(t, "Pc 1 (1200x900)", resp.Placements[0].Label)
	assert.Equal(t, placementResponse{ID: resp.Placements[1].ID, Label: resp.Placements[1].Label, X: 0, Y: 904, Width: 500, Height: 150, Rotated: true}, resp.Placements[1])
	assert.Len(t, resp.Legend, 46)
	assert.Equal(t, "Pc 1", resp.Legend[0].Label)

	require.Len(t, store.runs, 1)
	assert.Equal(t, resp.RunID, store.runs[0].ID)
	assert.True(t, store.runs[0].CreatedAt.Equal(fixedTime))
	assert.Equal(t, 46, store.runs[0].Placed)
}

func TestHandleOptimize_PiecesWithUnplaced(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	body := `{
		"sheet_width": 200, "sheet_height": 100, "kerf": 2,
		"pieces": [
			{"label": "Beam", "width": 300, "height": 50, "quantity": 2},
			{"width": 80, "height": 40, "quantity": 1}
		]
	}`
	rec := serve(t, router, http.MethodPost, "/api/optimize", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[optimizeResponse](t, rec)

	assert.False(t, resp.Complete)
	assert.Equal(t, 1, resp.Placed)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, []unplacedResponse{{Width: 300, Height: 50, Count: 2, Summary: "2 pcs of 300x50"}}, resp.Unplaced)
	assert.Equal(t, "Pc 3 (80x40)", resp.Placements[0].Label)
	assert.NotEmpty(t, resp.Offcuts)
}

func TestHandleOptimize_ZeroKerfIsKept(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	body := `{"sheet_width": 100, "sheet_height": 100, "kerf": 0,
		"pieces": [{"width": 50, "height": 100, "quantity": 2}]}`
	rec := serve(t, router, http.MethodPost, "/api/optimize", body)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[optimizeResponse](t, rec)
	assert.Equal(t, 0.0, resp.Kerf)
	assert.Equal(t, 100.0, resp.UtilizationPercent)
}

func TestHandleOptimize_InvalidInput(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	tests := []struct {
		name    string
		body    string
		details string
	}{
		{"bad JSON", `{"pieces": [`, "unable to parse JSON payload"},
		{"no pieces", `{}`, model.ErrNoPieces.Error()},
		{"malformed list", `{"piece_list": "2\nwide"}`, "line 2"},
		{"negative kerf", `{"kerf": -1, "piece_list": "1\n10x10"}`, model.ErrInvalidKerf.Error()},
		{"zero sheet", `{"sheet_width": 0, "piece_list": "1\n10x10"}`, model.ErrInvalidSheet.Error()},
		{"zero quantity", `{"pieces": [{"width": 10, "height": 10, "quantity": 0}]}`, model.ErrInvalidPiece.Error()},
		{"both inputs", `{"piece_list": "1\n10x10", "pieces": [{"width": 10, "height": 10, "quantity": 1}]}`, "not both"},
		{"too many", `{"piece_list": "10001\n10x10"}`, "too many pieces"},
		{"quantity overflow", `{"pieces": [
			{"width": 10, "height": 10, "quantity": 4611686018427387904},
			{"width": 10, "height": 10, "quantity": 4611686018427387904}]}`, "too many pieces"},
		{"huge list quantity", `{"piece_list": "9223372036854775807\n10x10"}`, "too many pieces"},
		{"total over cap", `{"piece_list": "6000\n10x10\n6000\n20x20"}`, "too many pieces"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodPost, "/api/optimize", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, "Invalid request", resp.Error)
			assert.Contains(t, resp.Details, tt.details)
		})
	}
}

func TestHandleOptimize_HistoryFailureDoesNotFailRequest(t *testing.T) {
	store := &memoryRunStore{recordErr: errors.New("disk full")}
	router := NewRouter(newTestHandler(t, WithHistory(store)), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodPost, "/api/optimize", defaultPieceList)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleOptimizePDF(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodPost, "/api/optimize/pdf", defaultPieceList)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=cutting_layout.pdf", rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestHandleOptimizePDF_InvalidInput(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodPost, "/api/optimize/pdf", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOptimizePNG(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodPost, "/api/optimize/png?width=400", defaultPieceList)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = serve(t, router, http.MethodPost, "/api/optimize/png?width=huge", defaultPieceList)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	store := &memoryRunStore{}
	router := NewRouter(newTestHandler(t, WithHistory(store)), zaptest.NewLogger(t), WithLogging(false))

	serve(t, router, http.MethodPost, "/api/optimize", defaultPieceList)
	serve(t, router, http.MethodPost, "/api/optimize", `{"piece_list": "1\n100x100"}`)

	rec := serve(t, router, http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[historyResponse](t, rec)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, 1, resp.Runs[0].Requested)

	rec = serve(t, router, http.MethodGet, "/api/history?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory_Disabled(t *testing.T) {
	router := NewRouter(newTestHandler(t), zaptest.NewLogger(t), WithLogging(false))

	rec := serve(t, router, http.MethodGet, "/api/history", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
