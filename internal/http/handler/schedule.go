package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	schedules *usecase.ScheduleUsecase
	logger    *slog.Logger
}

func NewScheduleHandler(schedules *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Name            string              `json:"name"            binding:"required,max=256"`
	TargetID        string              `json:"targetId"        binding:"required"`
	Type            domain.ScheduleType `json:"scheduleType"    binding:"required,oneof=interval cron"`
	IntervalSeconds int                 `json:"intervalSeconds" binding:"omitempty,min=1"`
	CronExpression  string              `json:"cronExpression"`
	StartAt         *time.Time          `json:"startAt"`
	DurationSeconds *int                `json:"durationSeconds" binding:"omitempty,min=1"`
	MaxRuns         *int                `json:"maxRuns"         binding:"omitempty,min=1"`
}

type listSchedulesResponse struct {
	Schedules  []*domain.Schedule `json:"schedules"`
	NextCursor *string            `json:"nextCursor"`
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sched, err := h.schedules.CreateSchedule(ctx.Request.Context(), usecase.CreateScheduleInput{
		Name:            req.Name,
		TargetID:        req.TargetID,
		Type:            req.Type,
		IntervalSeconds: req.IntervalSeconds,
		CronExpression:  req.CronExpression,
		StartAt:         req.StartAt,
		DurationSeconds: req.DurationSeconds,
		MaxRuns:         req.MaxRuns,
	})
	if err != nil {
		h.writeError(ctx, "create schedule", err)
		return
	}

	ctx.JSON(http.StatusCreated, sched)
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	sched, err := h.schedules.GetSchedule(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "get schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, sched)
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.schedules.ListSchedules(ctx.Request.Context(), usecase.ListSchedulesInput{
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		h.writeError(ctx, "list schedules", err)
		return
	}

	ctx.JSON(http.StatusOK, listSchedulesResponse{Schedules: result.Schedules, NextCursor: result.NextCursor})
}

func (h *ScheduleHandler) Pause(ctx *gin.Context) {
	if err := h.schedules.PauseSchedule(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.writeError(ctx, "pause schedule", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Resume(ctx *gin.Context) {
	if err := h.schedules.ResumeSchedule(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.writeError(ctx, "resume schedule", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	if err := h.schedules.DeleteSchedule(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.writeError(ctx, "delete schedule", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) writeError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
	case errors.Is(err, domain.ErrTargetNotFound):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errTargetNotFound})
	case errors.Is(err, domain.ErrInvalidCronExpr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidScheduleType):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidScheduleType})
	case errors.Is(err, domain.ErrInvalidWindow):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidWindow})
	case errors.Is(err, domain.ErrScheduleNameConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNameConflict})
	case errors.Is(err, domain.ErrScheduleAlreadyPaused):
		ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleAlreadyPaused})
	case errors.Is(err, domain.ErrScheduleNotPaused):
		ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNotPaused})
	case errors.Is(err, domain.ErrScheduleCompleted):
		ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleCompleted})
	case errors.Is(err, domain.ErrInvalidCursor):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
	default:
		h.logger.ErrorContext(ctx.Request.Context(), op, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
