package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/usecase"
	"github.com/gin-gonic/gin"
)

// RunHandler exposes Runs and Attempts read-only; both are produced
// exclusively by the scheduler process, never through this API.
type RunHandler struct {
	runs   *usecase.RunUsecase
	logger *slog.Logger
}

func NewRunHandler(runs *usecase.RunUsecase, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger.With("component", "run_handler")}
}

type listRunsResponse struct {
	Runs       []*domain.Run `json:"runs"`
	NextCursor *string       `json:"nextCursor"`
}

func (h *RunHandler) GetByID(ctx *gin.Context) {
	run, err := h.runs.GetRun(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "get run", err)
		return
	}
	ctx.JSON(http.StatusOK, run)
}

func (h *RunHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.runs.ListRuns(ctx.Request.Context(), usecase.ListRunsInput{
		ScheduleID: ctx.Query("scheduleId"),
		Status:     ctx.Query("status"),
		Cursor:     ctx.Query("cursor"),
		Limit:      limit,
	})
	if err != nil {
		h.writeError(ctx, "list runs", err)
		return
	}

	ctx.JSON(http.StatusOK, listRunsResponse{Runs: result.Runs, NextCursor: result.NextCursor})
}

func (h *RunHandler) ListAttempts(ctx *gin.Context) {
	attempts, err := h.runs.ListAttempts(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "list attempts", err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

func (h *RunHandler) writeError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
	case errors.Is(err, domain.ErrInvalidCursor):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
	default:
		h.logger.ErrorContext(ctx.Request.Context(), op, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
