package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"decentra/internal/middleware"
	"decentra/internal/service"
)

type registerRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Surname  string `json:"surname" binding:"required"`
	Role     string `json:"role"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileResponse struct {
	ID       int64   `json:"id"`
	Phone    string  `json:"phone"`
	Name     string  `json:"name"`
	Surname  string  `json:"surname"`
	Role     string  `json:"role"`
	PhotoIDs []int64 `json:"photoIds"`
	AppealID *int64  `json:"appealId"`
}

type authResponse struct {
	User      profileResponse `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type sessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	UserID        int64     `json:"userId"`
	Role          string    `json:"role"`
	Name          string    `json:"name"`
	Surname       string    `json:"surname"`
	Phone         string    `json:"phone"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, name, surname and password are required")
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Phone:    req.Phone,
		Name:     req.Name,
		Surname:  req.Surname,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		h.authEvent("register", outcome(err))
		h.writeError(c, err)
		return
	}

	h.authEvent("register", "ok")
	h.sendAuthResponse(c, result)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.authEvent("login", "rejected")
		h.writeError(c, service.ErrInvalidCredentials)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		h.authEvent("login", outcome(err))
		h.writeError(c, err)
		return
	}

	h.authEvent("login", "ok")
	h.sendAuthResponse(c, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("token revocation failed")
	}

	h.clearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me re-reads the caller from storage so deleted or deactivated users stop
// being reported as signed in.
func (h HandlerSet) Me(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	info, err := h.auth.Introspect(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, sessionResponse{Authenticated: false})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Authenticated: info.Authenticated,
		UserID:        info.UserID,
		Role:          string(info.Role),
		Name:          info.Name,
		Surname:       info.Surname,
		Phone:         info.Phone,
		ExpiresAt:     info.ExpiresAt,
	})
}

func (h HandlerSet) CheckActive(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return
	}

	active, err := h.auth.CheckActive(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id, "isActive": active})
}

func (h HandlerSet) Profile(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	profile, err := h.auth.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (h HandlerSet) sendAuthResponse(c *gin.Context, result service.AuthResult) {
	maxAge := int(time.Until(result.Token.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.cookie.TTL.Seconds())
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    result.Token.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  result.Token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, authResponse{
		User:      toProfileResponse(result.Profile),
		ExpiresAt: result.Token.ExpiresAt,
	})
}

func (h HandlerSet) clearAuthCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toProfileResponse(p service.Profile) profileResponse {
	photoIDs := p.PhotoIDs
	if photoIDs == nil {
		photoIDs = []int64{}
	}
	return profileResponse{
		ID:       p.ID,
		Phone:    p.Phone,
		Name:     p.Name,
		Surname:  p.Surname,
		Role:     string(p.Role),
		PhotoIDs: photoIDs,
		AppealID: p.AppealID,
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, service.ErrPhoneTaken):
		return "conflict"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "rejected"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrForbidden):
		return "invalid"
	default:
		return "error"
	}
}
