package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"decentra/internal/middleware"
	"decentra/internal/models"
	"decentra/internal/service"
)

type createAppealRequest struct {
	PhotoIDs    []int64 `json:"photoIds"`
	Description string  `json:"description"`
}

type appealStatusRequest struct {
	Appealed *bool `json:"appealed" binding:"required"`
}

type appealResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	PhotoIDs    []int64   `json:"photoIds"`
	Description string    `json:"description"`
	Appealed    bool      `json:"appealed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h HandlerSet) CreateAppeal(c *gin.Context) {
	var req createAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed appeal body")
		return
	}

	claims, _ := middleware.ClaimsFrom(c)
	appeal, err := h.appeals.Create(c.Request.Context(), claims.UserID, service.CreateAppealInput{
		PhotoIDs:    req.PhotoIDs,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appealId": appeal.ID, "message": "appeal submitted"})
}

func (h HandlerSet) ListAppeals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	appeals, err := h.appeals.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]appealResponse, 0, len(appeals))
	for _, a := range appeals {
		out = append(out, toAppealResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"appeals": out})
}

func (h HandlerSet) GetAppeal(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	detail, err := h.appeals.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"appeal": toAppealResponse(detail.Appeal),
		"photos": toPhotoResponses(detail.Photos),
	})
}

func (h HandlerSet) SetAppealStatus(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	var req appealStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "appealed must be true or false")
		return
	}

	appeal, err := h.appeals.SetStatus(c.Request.Context(), id, *req.Appealed)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appeal": toAppealResponse(appeal)})
}

func appealID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toAppealResponse(a models.Appeal) appealResponse {
	photoIDs := a.PhotoIDs
	if photoIDs == nil {
		photoIDs = []int64{}
	}
	return appealResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		PhotoIDs:    photoIDs,
		Description: a.Description,
		Appealed:    a.Appealed,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
