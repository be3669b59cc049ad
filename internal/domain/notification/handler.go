package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"localnotify/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler is the HTTP bridge to the notification engine. It speaks the
// same option mappings Parse accepts and ToOptions produces.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// decodeBody reads the request body keeping numbers exact, so large ids and
// epoch milliseconds survive the round trip.
func decodeBody(c *gin.Context) (any, error) {
	data, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func badRequest(msg string) error {
	return common.NewValidationError(common.CodeInvalidRequest, msg)
}

func pathID(c *gin.Context) (ID, error) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, invalidID("notification id must be a positive integer, got %q", c.Param("id"))
	}
	return ID(n), nil
}

func queryType(c *gin.Context) (Type, error) {
	t, err := ParseType(c.Query("type"))
	if err != nil {
		return "", badRequest(err.Error())
	}
	return t, nil
}

func renderAll(defs []*Definition) []map[string]any {
	out := make([]map[string]any, len(defs))
	for i, d := range defs {
		out[i] = ToOptions(d)
	}
	return out
}

// Schedule handles POST /notifications
// Accepts a single option mapping or an array of them.
func (h *Handler) Schedule(c *gin.Context) {
	body, err := decodeBody(c)
	if err != nil {
		common.HandleError(c, badRequest("invalid request body: "+err.Error()))
		return
	}

	var raws []map[string]any
	switch v := body.(type) {
	case map[string]any:
		raws = []map[string]any{v}
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				common.HandleError(c, badRequest(fmt.Sprintf("element %d is not an object", i)))
				return
			}
			raws = append(raws, m)
		}
	default:
		common.HandleError(c, badRequest("request body must be an object or an array of objects"))
		return
	}

	defs, err := h.service.ScheduleOptions(c.Request.Context(), raws)
	if err != nil {
		slog.Error("schedule notifications failed", "error", err, "count", len(raws))
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, renderAll(defs))
}

// Update handles PUT /notifications/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	body, err := decodeBody(c)
	if err != nil {
		common.HandleError(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	raw, ok := body.(map[string]any)
	if !ok {
		common.HandleError(c, badRequest("request body must be an object"))
		return
	}

	def, err := h.service.UpdateOptions(c.Request.Context(), id, raw)
	if err != nil {
		slog.Error("update notification failed", "error", err, "id", id)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, ToOptions(def))
}

// List handles GET /notifications?type=&ids=
func (h *Handler) List(c *gin.Context) {
	t, err := queryType(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var defs []*Definition
	if raw := c.Query("ids"); raw != "" {
		ids, perr := parseIDList(raw)
		if perr != nil {
			common.HandleError(c, perr)
			return
		}
		defs, err = h.service.ByIDs(c.Request.Context(), ids, t)
	} else {
		defs, err = h.service.ByType(c.Request.Context(), t)
	}
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, renderAll(defs))
}

func parseIDList(raw string) ([]ID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]ID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, invalidID("invalid notification id %q", p)
		}
		ids = append(ids, ID(n))
	}
	return ids, nil
}

// IDs handles GET /notifications/ids?type=
func (h *Handler) IDs(c *gin.Context) {
	t, err := queryType(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	ids, err := h.service.IDs(c.Request.Context(), t)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, ids)
}

// Get handles GET /notifications/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	def, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, ToOptions(def))
}

// State handles GET /notifications/:id/type
func (h *Handler) State(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	state, err := h.service.State(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"id": id, "type": state})
}

// Exists handles GET /notifications/:id/exists?type=
func (h *Handler) Exists(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	t, err := queryType(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	ok, err := h.service.Exists(c.Request.Context(), id, t)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"id": id, "exists": ok})
}

// Cancel handles DELETE /notifications/:id
func (h *Handler) Cancel(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelAll handles DELETE /notifications
func (h *Handler) CancelAll(c *gin.Context) {
	if err := h.service.CancelAll(c.Request.Context()); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles POST /notifications/:id/clear
func (h *Handler) Clear(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if err := h.service.Clear(c.Request.Context(), id); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Click handles POST /notifications/:id/click?action=
func (h *Handler) Click(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if err := h.service.Click(c.Request.Context(), id, c.Query("action")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearAll handles POST /notifications/clear
func (h *Handler) ClearAll(c *gin.Context) {
	if err := h.service.ClearAll(c.Request.Context()); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterCategory handles POST /categories
func (h *Handler) RegisterCategory(c *gin.Context) {
	body, err := decodeBody(c)
	if err != nil {
		common.HandleError(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	raw, ok := body.(map[string]any)
	if !ok {
		common.HandleError(c, badRequest("request body must be an object"))
		return
	}
	id, _ := raw["id"].(string)
	actions, _ := raw["actions"].([]any)

	category, err := ParseCategory(id, actions)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if err := h.service.RegisterCategory(c.Request.Context(), category); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, category)
}

// ListCategories handles GET /categories
func (h *Handler) ListCategories(c *gin.Context) {
	refs, err := h.service.CategoryReferences(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{
		"ids":        h.service.CategoryIDs(),
		"references": refs,
	})
}

// GetCategory handles GET /categories/:id
func (h *Handler) GetCategory(c *gin.Context) {
	id := c.Param("id")
	category, ok := h.service.Category(id)
	if !ok {
		common.HandleError(c, common.NewNotFoundError("action category", id))
		return
	}
	common.Success(c, http.StatusOK, category)
}

// UnregisterCategory handles DELETE /categories/:id
func (h *Handler) UnregisterCategory(c *gin.Context) {
	if err := h.service.UnregisterCategory(c.Request.Context(), c.Param("id")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Permission handles GET /permission
func (h *Handler) Permission(c *gin.Context) {
	granted, err := h.service.HasPermission(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"granted": granted})
}

// RequestPermission handles POST /permission
func (h *Handler) RequestPermission(c *gin.Context) {
	granted, err := h.service.RequestPermission(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"granted": granted})
}

// SetBadge handles PUT /badge
func (h *Handler) SetBadge(c *gin.Context) {
	var req struct {
		Badge *int `json:"badge" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if err := h.service.SetBadge(c.Request.Context(), *req.Badge); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"badge": *req.Badge})
}

// GetDefaults handles GET /defaults
func (h *Handler) GetDefaults(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.Defaults())
}

// SetDefaults handles PUT /defaults
func (h *Handler) SetDefaults(c *gin.Context) {
	var d Defaults
	if err := c.ShouldBindJSON(&d); err != nil {
		common.HandleError(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if err := h.service.SetDefaults(d); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, h.service.Defaults())
}

// RegisterRoutes registers the notification lifecycle routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Schedule)
	rg.GET("/notifications", h.List)
	rg.DELETE("/notifications", h.CancelAll)
	rg.POST("/notifications/clear", h.ClearAll)
	rg.GET("/notifications/ids", h.IDs)
	rg.GET("/notifications/:id", h.Get)
	rg.PUT("/notifications/:id", h.Update)
	rg.DELETE("/notifications/:id", h.Cancel)
	rg.GET("/notifications/:id/type", h.State)
	rg.GET("/notifications/:id/exists", h.Exists)
	rg.POST("/notifications/:id/clear", h.Clear)
	rg.POST("/notifications/:id/click", h.Click)
}

// RegisterCategoryRoutes registers the action category routes.
func (h *Handler) RegisterCategoryRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.ListCategories)
	rg.POST("/categories", h.RegisterCategory)
	rg.GET("/categories/:id", h.GetCategory)
	rg.DELETE("/categories/:id", h.UnregisterCategory)
}

// RegisterHostRoutes registers permission, badge and parse default routes.
func (h *Handler) RegisterHostRoutes(rg *gin.RouterGroup) {
	rg.GET("/permission", h.Permission)
	rg.POST("/permission", h.RequestPermission)
	rg.PUT("/badge", h.SetBadge)
	rg.GET("/defaults", h.GetDefaults)
	rg.PUT("/defaults", h.SetDefaults)
}
