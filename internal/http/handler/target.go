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

type TargetHandler struct {
	targets *usecase.TargetUsecase
	logger  *slog.Logger
}

func NewTargetHandler(targets *usecase.TargetUsecase, logger *slog.Logger) *TargetHandler {
	return &TargetHandler{targets: targets, logger: logger.With("component", "target_handler")}
}

type createTargetRequest struct {
	Name           string            `json:"name"            binding:"required,max=256"`
	URL            string            `json:"url"              binding:"required,url,max=2048"`
	Method         string            `json:"method"           binding:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	Headers        map[string]string `json:"headers"`
	BodyTemplate   *string           `json:"bodyTemplate"`
	TimeoutSeconds int               `json:"timeoutSeconds"  binding:"omitempty,min=1,max=3600"`
}

type updateTargetRequest struct {
	Name           string            `json:"name"            binding:"required,max=256"`
	URL            string            `json:"url"              binding:"required,url,max=2048"`
	Method         string            `json:"method"           binding:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	Headers        map[string]string `json:"headers"`
	BodyTemplate   *string           `json:"bodyTemplate"`
	TimeoutSeconds int               `json:"timeoutSeconds"  binding:"omitempty,min=1,max=3600"`
}

type listTargetsResponse struct {
	Targets    []*domain.Target `json:"targets"`
	NextCursor *string          `json:"nextCursor"`
}

func (h *TargetHandler) Create(ctx *gin.Context) {
	var req createTargetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := h.targets.CreateTarget(ctx.Request.Context(), usecase.CreateTargetInput{
		Name:           req.Name,
		URL:            req.URL,
		Method:         req.Method,
		Headers:        req.Headers,
		BodyTemplate:   req.BodyTemplate,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		h.writeError(ctx, "create target", err)
		return
	}

	ctx.JSON(http.StatusCreated, target)
}

func (h *TargetHandler) GetByID(ctx *gin.Context) {
	target, err := h.targets.GetTarget(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "get target", err)
		return
	}
	ctx.JSON(http.StatusOK, target)
}

func (h *TargetHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.targets.ListTargets(ctx.Request.Context(), usecase.ListTargetsInput{
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		h.writeError(ctx, "list targets", err)
		return
	}

	ctx.JSON(http.StatusOK, listTargetsResponse{Targets: result.Targets, NextCursor: result.NextCursor})
}

func (h *TargetHandler) Update(ctx *gin.Context) {
	var req updateTargetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := h.targets.UpdateTarget(ctx.Request.Context(), usecase.UpdateTargetInput{
		ID:             ctx.Param("id"),
		Name:           req.Name,
		URL:            req.URL,
		Method:         req.Method,
		Headers:        req.Headers,
		BodyTemplate:   req.BodyTemplate,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		h.writeError(ctx, "update target", err)
		return
	}

	ctx.JSON(http.StatusOK, target)
}

func (h *TargetHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.targets.DeleteTarget(ctx.Request.Context(), id); err != nil {
		h.writeError(ctx, "delete target", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *TargetHandler) writeError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrTargetNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errTargetNotFound})
	case errors.Is(err, domain.ErrTargetNameConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": errTargetNameConflict})
	case errors.Is(err, domain.ErrInvalidTarget):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCursor):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
	default:
		h.logger.ErrorContext(ctx.Request.Context(), op, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
