package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/CutYield/internal/engine"
	"github.com/piwi3910/CutYield/internal/export"
	"github.com/piwi3910/CutYield/internal/importer"
	"github.com/piwi3910/CutYield/internal/model"
	"github.com/piwi3910/CutYield/internal/project"
)

// RunStore records runs and lists them back. *project.HistoryStore
// satisfies it.
type RunStore interface {
	Record(ctx context.Context, run project.Run) error
	List(ctx context.Context, limit int) ([]project.Run, error)
}

// Handler wires the optimizer, exporters and run history into HTTP handlers.
type Handler struct {
	defaults  model.Job
	minOffcut float64
	history   RunStore
	logger    *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHistory records every successful optimization in store.
func WithHistory(store RunStore) HandlerOption {
	return func(h *Handler) {
		h.history = store
	}
}

// WithMinOffcut sets the smallest side of a reported offcut.
func WithMinOffcut(minDim float64) HandlerOption {
	return func(h *Handler) {
		h.minOffcut = minDim
	}
}

// NewHandler constructs a Handler. Requests that omit the sheet size or
// kerf fall back to sheet and kerf.
func NewHandler(sheet model.StockSheet, kerf float64, logger *zap.Logger, opts ...HandlerOption) *Handler {
	defaults := model.NewJob()
	defaults.Sheet = sheet
	defaults.Kerf = kerf

	h := &Handler{
		defaults:  defaults,
		minOffcut: model.MinOffcutDimension,
		logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	})
}

func (h *Handler) handleOptimize(c *gin.Context) {
	result, runID, ok := h.optimize(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.newOptimizeResponse(result, runID))
}

func (h *Handler) handleOptimizePDF(c *gin.Context) {
	result, _, ok := h.optimize(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, result); err != nil {
		writeInternalError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=cutting_layout.pdf")
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *Handler) handleOptimizePNG(c *gin.Context) {
	width := export.DefaultPreviewWidth
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w <= 0 || w > 8000 {
			writeError(c, http.StatusBadRequest, "Invalid request", "width must be an integer between 1 and 8000")
			return
		}
		width = w
	}

	result, _, ok := h.optimize(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.RenderPNG(&buf, result, width); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) handleHistory(c *gin.Context) {
	if h.history == nil {
		writeError(c, http.StatusNotFound, "History disabled", "the server is not recording runs")
		return
	}

	limit := project.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "Invalid request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		writeInternalError(c, err)
		return
	}
	if runs == nil {
		runs = []project.Run{}
	}
	c.JSON(http.StatusOK, historyResponse{Runs: runs})
}

// optimize decodes and validates the request, runs the optimizer and
// records the run. On failure it has already written the error response.
func (h *Handler) optimize(c *gin.Context) (model.PackingResult, string, bool) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return model.PackingResult{}, "", false
	}

	job, err := h.jobFromRequest(req)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return model.PackingResult{}, "", false
	}

	pieces := model.ExpandPieces(job.Pieces)
	result := engine.New(model.CutSettings{Kerf: job.Kerf}).Optimize(job.Sheet, pieces)

	run := project.NewRun(result)
	run.CreatedAt = h.clock()
	if h.history != nil {
		if err := h.history.Record(c.Request.Context(), run); err != nil {
			// The layout is still valid; only the history entry is lost.
			h.logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	h.logger.Info("optimization completed",
		zap.String("run_id", run.ID),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Int("requested", result.RequestedCount()),
		zap.Int("placed", len(result.Placements)),
		zap.Float64("utilization", result.UtilizationPercent),
	)
	return result, run.ID, true
}

// jobFromRequest builds and validates a job from the request, filling in the
// server defaults for omitted sheet and kerf values.
func (h *Handler) jobFromRequest(req optimizeRequest) (model.Job, error) {
	job := h.defaults
	if req.SheetWidth != nil {
		job.Sheet.Width = *req.SheetWidth
	}
	if req.SheetHeight != nil {
		job.Sheet.Height = *req.SheetHeight
	}
	if req.Kerf != nil {
		job.Kerf = *req.Kerf
	}

	switch {
	case len(req.Pieces) > 0 && strings.TrimSpace(req.PieceList) != "":
		return model.Job{}, errors.New("send either pieces or piece_list, not both")
	case len(req.Pieces) > 0:
		job.Pieces = make([]model.PieceSpec, 0, len(req.Pieces))
		for _, p := range req.Pieces {
			job.Pieces = append(job.Pieces, model.PieceSpec{
				Label:    p.Label,
				Width:    p.Width,
				Height:   p.Height,
				Quantity: p.Quantity,
			})
		}
	default:
		specs, err := importer.ParsePieceListString(req.PieceList)
		if err != nil {
			return model.Job{}, err
		}
		job.Pieces = specs
	}

	if err := job.Validate(); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func (h *Handler) newOptimizeResponse(result model.PackingResult, runID string) optimizeResponse {
	placements := make([]placementResponse, 0, len(result.Placements))
	for _, p := range result.Placements {
		placements = append(placements, placementResponse{
			ID:      p.Piece.ID,
			Label:   p.Piece.Label,
			X:       p.X,
			Y:       p.Y,
			Width:   p.PlacedWidth(),
			Height:  p.PlacedHeight(),
			Rotated: p.Rotated,
		})
	}

	groups := result.UnplacedSummary()
	unplaced := make([]unplacedResponse, 0, len(groups))
	for _, g := range groups {
		unplaced = append(unplaced, unplacedResponse{
			Width:   g.Width,
			Height:  g.Height,
			Count:   g.Count,
			Summary: g.String(),
		})
	}

	offcuts := model.DetectOffcuts(result, h.minOffcut)
	if offcuts == nil {
		offcuts = []model.Offcut{}
	}

	return optimizeResponse{
		RunID:              runID,
		SheetWidth:         result.Sheet.Width,
		SheetHeight:        result.Sheet.Height,
		Kerf:               result.Kerf,
		Placements:         placements,
		Unplaced:           unplaced,
		Legend:             model.Legend(result),
		Offcuts:            offcuts,
		Requested:          result.RequestedCount(),
		Placed:             len(result.Placements),
		UtilizationPercent: result.UtilizationPercent,
		Headline:           result.Headline(),
		Complete:           result.Complete(),
	}
}

type pieceRequest struct {
	Label    string  `json:"label"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Quantity int     `json:"quantity"`
}

type optimizeRequest struct {
	SheetWidth  *float64       `json:"sheet_width"`
	SheetHeight *float64       `json:"sheet_height"`
	Kerf        *float64       `json:"kerf"`
	Pieces      []pieceRequest `json:"pieces"`
	PieceList   string         `json:"piece_list"`
}

type placementResponse struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Rotated bool    `json:"rotated"`
}

type unplacedResponse struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Count   int     `json:"count"`
	Summary string  `json:"summary"`
}

type optimizeResponse struct {
	RunID              string              `json:"run_id"`
	SheetWidth         float64             `json:"sheet_width"`
	SheetHeight        float64             `json:"sheet_height"`
	Kerf               float64             `json:"kerf"`
	Placements         []placementResponse `json:"placements"`
	Unplaced           []unplacedResponse  `json:"unplaced"`
	Legend             []model.LegendRow   `json:"legend"`
	Offcuts            []model.Offcut      `json:"offcuts"`
	Requested          int                 `json:"requested"`
	Placed             int                 `json:"placed"`
	UtilizationPercent float64             `json:"utilization_percent"`
	Headline           string              `json:"headline"`
	Complete           bool                `json:"complete"`
}

type historyResponse struct {
	Runs []project.Run `json:"runs"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, message, details string) {
	c.JSON(status, errorResponse{Error: message, Details: details})
}

func abortWithError(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Details: details})
}

func writeInternalError(c *gin.Context, err error) {
	writeError(c, http.StatusInternalServerError, "Internal error", err.Error())
}
