package uploads

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/shared/server/middleware"
	"configmarket-backend/internal/shared/server/respond"
	"configmarket-backend/internal/shared/util"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files", h.upload)
	rg.GET("/files", h.list)
	rg.GET("/files/:id", h.get)
	rg.GET("/files/:id/download", h.download)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	maxBytes := h.Svc.maxBytes()
	// Multipart framing adds overhead beyond the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > maxBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, string(ReasonOversized),
			"file exceeds the maximum upload size of "+strconv.FormatInt(maxBytes, 10)+" bytes", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	stored, err := h.Svc.Intake(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	c.Set("fileId", stored.ID)
	respond.JSON(c, http.StatusCreated, toResponse(stored))
}

func (h *Handler) respondIntakeError(c *gin.Context, err error) {
	if rej, ok := AsRejection(err); ok {
		switch rej.Reason {
		case ReasonRateLimited:
			c.Header("Retry-After", strconv.Itoa(rej.RetryAfterSeconds))
			respond.Error(c, http.StatusTooManyRequests, string(rej.Reason), rej.Message,
				gin.H{"retryAfterSeconds": rej.RetryAfterSeconds})
		case ReasonOversized:
			respond.Error(c, http.StatusRequestEntityTooLarge, string(rej.Reason), rej.Message, nil)
		case ReasonInfected:
			respond.Error(c, http.StatusUnprocessableEntity, string(rej.Reason), rej.Message,
				gin.H{"signatures": rej.Signatures})
		case ReasonScannerUnavailable:
			respond.Error(c, http.StatusServiceUnavailable, string(rej.Reason), rej.Message, nil)
		default:
			respond.Error(c, http.StatusBadRequest, string(rej.Reason), rej.Message, nil)
		}
		return
	}
	if errors.Is(err, ErrInvalidInput) {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	file, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch file", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(file))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	files, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list files", nil)
		return
	}

	resp := make([]FileResponse, 0, len(files))
	for _, file := range files {
		resp = append(resp, toResponse(file))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	file, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch file", nil)
		}
		return
	}

	rc, err := h.Svc.OpenContent(c.Request.Context(), file)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open file", nil)
		return
	}
	defer rc.Close()

	StreamFile(c, file, rc)
}

// StreamFile writes a stored file's bytes to the response with download
// headers. Shared with the marketplace download endpoint.
func StreamFile(c *gin.Context, file StoredFile, rc io.Reader) {
	contentType := file.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	displayName := file.OriginalName
	if sanitized, err := util.SanitizeFileName(displayName); err == nil {
		displayName = sanitized
	} else {
		displayName = "download" + file.Extension
	}
	extraHeaders := map[string]string{
		"Content-Disposition": `attachment; filename="` + displayName + `"`,
	}
	c.DataFromReader(http.StatusOK, file.SizeBytes, contentType, rc, extraHeaders)
}
