package ledger

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/shared/server/respond"
)

// HistoryPurger removes everything another module stored for a user, so an
// account deletion can cascade without a package cycle.
type HistoryPurger interface {
	PurgeUser(ctx context.Context, userID string) error
}

type Handler struct {
	Svc    *Service
	Purger HistoryPurger
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the public user routes. Admin-only routes are
// registered separately so the router can wrap them with the admin guard.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.register)
	rg.GET("/:id", h.get)
	rg.PUT("/:id/context", h.setContext)
}

// RegisterAdminRoutes mounts routes that mutate balances or remove accounts.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/credits", h.credit)
	rg.DELETE("/:id", h.delete)
}

type registerRequest struct {
	ID         string `json:"id" binding:"required"`
	Username   string `json:"username"`
	ReferredBy string `json:"referredBy"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "id is required", nil)
		return
	}
	user, created, err := h.Svc.Register(c.Request.Context(), req.ID, req.Username, req.ReferredBy)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register user", nil)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, user)
}

func (h *Handler) get(c *gin.Context) {
	user, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.OK(c, user)
}

type contextRequest struct {
	Context string `json:"context" binding:"required"`
}

func (h *Handler) setContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "context is required", nil)
		return
	}
	if err := h.Svc.SetContext(c.Request.Context(), c.Param("id"), req.Context); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to set context", nil)
		return
	}
	respond.OK(c, gin.H{"status": "ok"})
}

type creditRequest struct {
	Amount int `json:"amount" binding:"required"`
}

func (h *Handler) credit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "amount must be a positive integer", nil)
		return
	}
	balance, err := h.Svc.Credit(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to grant credits", nil)
		return
	}
	respond.OK(c, gin.H{"balance": balance})
}

func (h *Handler) delete(c *gin.Context) {
	if h.Purger != nil {
		if err := h.Purger.PurgeUser(c.Request.Context(), c.Param("id")); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to purge user history", nil)
			return
		}
	}
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete user", nil)
		return
	}
	respond.OK(c, gin.H{"status": "deleted"})
}
