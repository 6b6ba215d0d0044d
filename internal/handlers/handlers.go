package handlers

import (
	"errors"
	"net/http"

	"imgclassd/internal/model"
	"imgclassd/internal/render"
	"imgclassd/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the success envelope returned by every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type Handler struct {
	ctrl *workflow.Controller
	feed *workflow.Feed
	log  *zap.Logger
}

func NewHandler(ctrl *workflow.Controller, feed *workflow.Feed, log *zap.Logger) *Handler {
	return &Handler{
		ctrl: ctrl,
		feed: feed,
		log:  log,
	}
}

// Health reports liveness; the container healthcheck hits this.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Models returns the fixed model catalog for the picker.
func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    model.Catalog(),
	})
}

// Upload accepts a multipart image and hands it to the workflow.
func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.log.Warn("no image in upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "Upload an image file under the 'image' field.",
			Error:   err.Error(),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "Could not read the uploaded file.",
			Error:   err.Error(),
		})
		return
	}
	defer src.Close()

	if err := h.ctrl.LoadImage(file.Filename, file.Size, src); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, workflow.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, workflow.ErrOversize), errors.Is(err, workflow.ErrDecode):
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{
			Success: false,
			Message: "Upload rejected.",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Image loaded.",
		Data:    h.ctrl.Snapshot(),
	})
}

type classifyRequest struct {
	Model string `json:"model" binding:"required"`
}

// Classify runs one classification request against the selected model.
func (h *Handler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "Request body must name a model.",
			Error:   err.Error(),
		})
		return
	}

	name := model.Name(req.Model)
	if _, ok := model.Lookup(name); !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "Unknown model.",
			Error:   "supported models: mobilenetv4, resnet50",
		})
		return
	}

	preds, err := h.ctrl.Classify(c.Request.Context(), name)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflow.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, workflow.ErrNoImage):
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{
			Success: false,
			Message: "Classification failed.",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Classification complete.",
		Data: gin.H{
			"results":  preds,
			"rendered": render.Results(preds),
		},
	})
}

// Status reports workflow phase, progress, rendered results and recent
// notifications. The page polls this while a request is in flight.
func (h *Handler) Status(c *gin.Context) {
	snap := h.ctrl.Snapshot()

	data := gin.H{
		"state":         snap,
		"notifications": h.feed.Recent(),
	}
	if len(snap.Results) > 0 {
		data["rendered"] = render.Results(snap.Results)
	} else {
		data["placeholder"] = render.Placeholder
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}
