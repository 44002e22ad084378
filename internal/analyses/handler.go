package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/shared/server/middleware"
	"defectmaster-backend/internal/shared/server/respond"
)

// maxPhotoBytes bounds uploads; messaging platforms cap photos well below
// this anyway.
const maxPhotoBytes = 20 << 20

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.submit)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PUT("/:id/message-ref", h.setMessageRef)
}

func (h *Handler) RegisterDefectRoutes(rg *gin.RouterGroup) {
	rg.PATCH("/:id/status", h.updateDefectStatus)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/:id/analyses", h.purgeUser)
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "user identity required", nil)
		return
	}

	photo, err := readPhoto(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "photo is required", nil)
		return
	}

	outcome, err := h.Svc.Submit(c.Request.Context(), SubmitInput{
		UserID:     userID,
		Photo:      photo,
		MessageRef: strings.TrimSpace(c.PostForm("messageRef")),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAdmitted):
			respond.Error(c, http.StatusForbidden, ErrorCodeNotAdmitted, err.Error(), nil)
		case errors.Is(err, ErrNoCredits):
			respond.Error(c, http.StatusPaymentRequired, ErrorCodeNoCredits, "no credits left", nil)
		case errors.Is(err, ErrQuotaExhausted):
			respond.Error(c, http.StatusTooManyRequests, ErrorCodeQuotaExhausted, "analysis provider is rate limited, no credits were charged, try again later", nil)
		case errors.Is(err, ErrMalformedOutput):
			respond.Error(c, http.StatusBadGateway, ErrorCodeMalformedOutput, "analysis produced an unreadable result, no credits were charged", nil)
		case errors.Is(err, ErrServiceUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, ErrorCodeServiceUnavailable, "analysis service is unavailable, no credits were charged, try again later", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "analysis failed", nil)
		}
		return
	}
	respond.OK(c, outcome)
}

// readPhoto accepts either a multipart "photo" field or a raw image body.
func readPhoto(c *gin.Context) ([]byte, error) {
	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPhotoBytes))
		if err != nil || len(data) == 0 {
			return nil, errors.New("empty body")
		}
		return data, nil
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return nil, err
	}
	if file.Size > maxPhotoBytes {
		return nil, errors.New("photo too large")
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "user identity required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"analyses": items})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "user identity required", nil)
		return
	}
	analysis, defects, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load analysis", nil)
		return
	}
	respond.OK(c, gin.H{"analysis": analysis, "defects": defects})
}

type messageRefRequest struct {
	MessageRef string `json:"messageRef" binding:"required"`
}

func (h *Handler) setMessageRef(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "user identity required", nil)
		return
	}
	var req messageRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "messageRef is required", nil)
		return
	}
	if err := h.Svc.SetMessageRef(c.Request.Context(), userID, c.Param("id"), req.MessageRef); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to store message ref", nil)
		return
	}
	respond.OK(c, gin.H{"status": "stored"})
}

type defectStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateDefectStatus(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "user identity required", nil)
		return
	}
	var req defectStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "status is required", nil)
		return
	}
	defect, err := h.Svc.UpdateDefectStatus(c.Request.Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "defect not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to update defect", nil)
		}
		return
	}
	respond.OK(c, defect)
}

func (h *Handler) purgeUser(c *gin.Context) {
	if err := h.Svc.PurgeUser(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to purge analyses", nil)
		return
	}
	respond.OK(c, gin.H{"status": "purged"})
}
