package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"soa-extract/pkg/models"
	"soa-extract/pkg/services/storage"

	"github.com/gin-gonic/gin"
)

// Uploader persists uploaded documents
type Uploader interface {
	Save(name string, r io.Reader) (string, error)
}

// Extractor runs the extraction pipeline
type Extractor interface {
	Extract(ctx context.Context, req models.ExtractionRequest) (json.RawMessage, error)
}

// Handler serves the upload and extraction endpoints
type Handler struct {
	uploads   Uploader
	extractor Extractor
}

// New creates a handler backed by the given store and extractor
func New(uploads Uploader, extractor Extractor) *Handler {
	return &Handler{
		uploads:   uploads,
		extractor: extractor,
	}
}

// Upload stores the multipart "file" field and returns its reference path
func (h *Handler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondTooLarge(c, tooLarge.Limit)
			return
		}
		respondError(c, http.StatusBadRequest, fmt.Sprintf("No file uploaded: %v", err))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.uploadFailed(c, err)
		return
	}
	defer file.Close()

	ref, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilename) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.uploadFailed(c, err)
		return
	}

	logger(c).Info("file uploaded", "path", ref, "size", header.Size)
	c.JSON(http.StatusOK, gin.H{"filePath": ref})
}

func (h *Handler) uploadFailed(c *gin.Context, err error) {
	logger(c).Error("upload failed", "error", err)
	respondError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to upload file: %v", err))
}

// ExtractSOA extracts statement-of-account rows from a previously uploaded image
func (h *Handler) ExtractSOA(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	log := logger(c).With("image", req.ImagePath, "boxes", len(req.UserBoxes))
	log.Info("extraction requested")

	result, err := h.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		log.Error("extraction failed", "status", status, "error", err)
		respondError(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

// Health reports that the service is up
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respondTooLarge(c *gin.Context, limit int64) {
	respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: uploads are limited to %d bytes", limit))
}

func respondError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func logger(c *gin.Context) *slog.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if log, ok := l.(*slog.Logger); ok {
			return log
		}
	}
	return slog.Default()
}
