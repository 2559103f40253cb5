package configs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/shared/server/middleware"
	"configmarket-backend/internal/shared/server/respond"
	"configmarket-backend/internal/uploads"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches marketplace routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/configs", h.create)
	rg.GET("/configs", h.list)
	rg.GET("/configs/:id", h.get)
	rg.GET("/configs/:id/download", h.download)
	rg.POST("/configs/:id/ratings", h.rate)
	rg.GET("/configs/:id/comments", h.listComments)
	rg.POST("/configs/:id/comments", h.addComment)
	rg.POST("/configs/:id/purchase", h.purchase)
	rg.GET("/categories", h.categories)
}

type createRequest struct {
	FileID      string   `json:"fileId" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" binding:"required"`
	Versions    []string `json:"versions"`
	PriceCents  int64    `json:"priceCents"`
	Tags        []string `json:"tags"`
}

// requireUser rejects guest identities for write operations. Guests may
// upload and browse, but publishing, rating, commenting, and purchasing need
// a signed-in account.
func requireUser(c *gin.Context) (string, bool) {
	if middleware.IsGuestFromContext(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "sign in to perform this action", nil)
		return "", false
	}
	return middleware.UserIDFromContext(c), true
}

func (h *Handler) create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	cfg, err := h.Svc.Create(c.Request.Context(), userID, CreateInput{
		FileID:      req.FileID,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.Category,
		Versions:    req.Versions,
		PriceCents:  req.PriceCents,
		Tags:        req.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid listing fields", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "file does not belong to you", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create config", nil)
		}
		return
	}

	c.Set("configId", cfg.ID)
	respond.JSON(c, http.StatusCreated, toResponse(cfg))
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Search:   c.Query("q"),
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}

	cfgs, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list configs", nil)
		return
	}

	resp := make([]ConfigResponse, 0, len(cfgs))
	for _, cfg := range cfgs {
		resp = append(resp, toResponse(cfg))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) get(c *gin.Context) {
	cfg, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(cfg))
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	file, rc, err := h.Svc.Download(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "config not found", nil)
		case errors.Is(err, ErrPaymentRequired):
			respond.Error(c, http.StatusPaymentRequired, "purchase_required", "purchase this config to download it", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch config file", nil)
		}
		return
	}
	defer rc.Close()

	uploads.StreamFile(c, file, rc)
}

type rateRequest struct {
	Score int `json:"score" binding:"required"`
}

func (h *Handler) rate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "score is required", nil)
		return
	}

	configID := c.Param("id")
	avg, count, err := h.Svc.Rate(c.Request.Context(), userID, configID, req.Score)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "score must be between 1 and 5", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "you cannot rate your own config", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "config not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record rating", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, RatingResponse{ConfigID: configID, RatingAvg: avg, RatingCount: count})
}

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *Handler) addComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "body is required", nil)
		return
	}

	comment, err := h.Svc.AddComment(c.Request.Context(), userID, c.Param("id"), req.Body)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}

	respond.JSON(c, http.StatusCreated, toCommentResponse(comment))
}

func (h *Handler) listComments(c *gin.Context) {
	limit, offset := 0, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	comments, err := h.Svc.ListComments(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}

	resp := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, toCommentResponse(comment))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) purchase(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	configID := c.Param("id")
	err := h.Svc.Purchase(c.Request.Context(), userID, configID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "config not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "you already own this config", nil)
		case errors.Is(err, ErrAlreadyPurchased):
			respond.Error(c, http.StatusConflict, "already_purchased", "config already purchased", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record purchase", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, gin.H{"configId": configID, "status": "purchased"})
}

func (h *Handler) categories(c *gin.Context) {
	cats, err := h.Svc.Categories(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list categories", nil)
		return
	}

	resp := make([]CategoryResponse, 0, len(cats))
	for _, cat := range cats {
		resp = append(resp, CategoryResponse{CategoryID: cat.ID, Name: cat.Name})
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "config not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid input", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
