package http

import (
	"errors"
	"net/http"
	"time"

	"roomdesk/internal/app"
	"roomdesk/internal/domain"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Svc *app.Service
}

type createRoomRequest struct {
	Host string `json:"host"`
	Code string `json:"code"`
	Map  string `json:"map"`
	Mode string `json:"mode"`
}

type extendRequest struct {
	Extra string `json:"extra"` // Go duration string; empty uses the configured increment
}

type editRequest struct {
	Map  *string `json:"map"`
	Mode *string `json:"mode"`
}

type flowStartRequest struct {
	Edit bool   `json:"edit"`
	Code string `json:"code"`
}

type flowInputRequest struct {
	Input string `json:"input"`
}

func caller(c *gin.Context) domain.OwnerID {
	return domain.OwnerID(c.GetString("client_token"))
}

// errStatus maps the registry's error taxonomy onto HTTP statuses.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCodeTaken), errors.Is(err, domain.ErrOwnerHasRoom):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoActiveFlow):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	room, err := h.Svc.CreateRoom(caller(c), req.Host, req.Code, req.Map, req.Mode)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Svc.ListRooms()})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	room, err := h.Svc.GetRoom(c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handlers) DeleteRoom(c *gin.Context) {
	if err := h.Svc.DeleteRoom(c.Param("code"), caller(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handlers) ExtendRoom(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var extra time.Duration
	if req.Extra != "" {
		d, err := time.ParseDuration(req.Extra)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid extra duration"})
			return
		}
		extra = d
	}
	deadline, err := h.Svc.ExtendRoom(c.Param("code"), caller(c), extra)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expires_at": deadline})
}

func (h *Handlers) EditRoom(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	patch := domain.RoomPatch{Map: req.Map, Mode: req.Mode}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to change"})
		return
	}
	room, err := h.Svc.EditRoom(c.Param("code"), caller(c), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handlers) StartFlow(c *gin.Context) {
	var req flowStartRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var step app.Step
	var err error
	if req.Edit {
		step, err = h.Svc.StartEdit(caller(c), req.Code)
	} else {
		step, err = h.Svc.StartCreate(caller(c))
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *Handlers) FlowInput(c *gin.Context) {
	var req flowInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	step, err := h.Svc.Advance(caller(c), req.Input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *Handlers) CancelFlow(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.Svc.CancelFlow(caller(c))})
}
