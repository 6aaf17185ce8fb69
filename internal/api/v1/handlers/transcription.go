package handlers

import (
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"transcribot/internal/api/errors"
	"transcribot/internal/api/middleware"
	"transcribot/internal/api/v1/dto"
	"transcribot/internal/api/v1/services"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/message"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and the other fields.
const multipartOverhead = 1 << 20

// UploadConfig controls where uploads are staged and how large they may be
type UploadConfig struct {
	Dir           string
	MaxFileSizeMB int
}

func (u UploadConfig) maxBytes() int64 {
	return int64(u.MaxFileSizeMB) << 20
}

// TranscriptionHandler handles transcription-related API endpoints
type TranscriptionHandler struct {
	service services.TranscriptionService
	upload  UploadConfig
	logger  *zap.Logger
}

// NewTranscriptionHandler creates a new transcription handler
func NewTranscriptionHandler(service services.TranscriptionService, upload UploadConfig, logger *zap.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{
		service: service,
		upload:  upload,
		logger:  logger,
	}
}

// Create handles POST /api/v1/transcriptions
// Uploads a media file and transcribes it within the user's quota
//
// @Summary Transcribe an uploaded media file
// @Description Stages the upload, transcribes it chunk by chunk and returns the text
// @Tags transcriptions
// @Accept multipart/form-data
// @Produce json
// @Param user_id formData string true "User whose quota is charged"
// @Param file formData file true "Media file (m4a, mp3, mp4, wav)"
// @Success 200 {object} dto.TranscriptionResponse "Transcription finished"
// @Failure 402 {object} errors.APIError "Quota exhausted"
// @Failure 413 {object} errors.APIError "File too large"
// @Failure 415 {object} errors.APIError "Unsupported media type"
// @Failure 422 {object} errors.APIError "Corrupt media or validation error"
// @Failure 502 {object} errors.APIError "Transcription service failed"
// @Failure 504 {object} errors.APIError "Transcription timed out"
// @Router /transcriptions [post]
func (h *TranscriptionHandler) Create(c *gin.Context) {
	limit := h.upload.maxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	if err := c.Request.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			middleware.HandleError(c, errors.FromDomain(apperrors.FileTooLarge(h.upload.MaxFileSizeMB), ""))
			return
		}
		middleware.HandleError(c, errors.NewBadRequestError("Expected a multipart form"))
		return
	}

	var form dto.TranscriptionForm
	if err := middleware.ValidateForm(c, &form); err != nil {
		middleware.HandleError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("Validation failed", map[string]string{"file": "is required"}))
		return
	}
	if header.Size > limit {
		middleware.HandleError(c, errors.FromDomain(apperrors.FileTooLarge(h.upload.MaxFileSizeMB), ""))
		return
	}

	format, err := message.FormatFor(header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		middleware.HandleError(c, errors.FromDomain(err, ""))
		return
	}

	stagedPath := filepath.Join(h.upload.Dir, uuid.NewString()+"."+format)
	if err := c.SaveUploadedFile(header, stagedPath); err != nil {
		h.logger.Error("failed to stage upload", zap.String("path", stagedPath), zap.Error(err))
		middleware.HandleError(c, errors.NewInternalError("Failed to store upload"))
		return
	}
	defer func() {
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove staged upload", zap.String("path", stagedPath), zap.Error(err))
		}
	}()

	response, err := h.service.Transcribe(c.Request.Context(), form.UserID, stagedPath, format)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
