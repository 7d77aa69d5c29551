package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"transfermarket/internal/service"
)

type MarketHandler struct {
	Engine *service.MarketService
	Query  *service.MarketQueryService
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/seasons/:season_id")
	group.POST("/bootstrap", h.bootstrap)
	group.POST("/tick", h.tick)
	group.GET("/market", h.status)
	group.GET("/negotiations", h.listNegotiations)
	group.GET("/transfers", h.listTransfers)
}

func (h *MarketHandler) bootstrap(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	seasonID := strings.TrimSpace(c.Param("season_id"))
	if seasonID == "" {
		Error(c, http.StatusBadRequest, "season_id required", nil)
		return
	}
	result, err := h.Engine.Bootstrap(c.Request.Context(), seasonID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *MarketHandler) tick(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	seasonID := strings.TrimSpace(c.Param("season_id"))
	if seasonID == "" {
		Error(c, http.StatusBadRequest, "season_id required", nil)
		return
	}
	result, err := h.Engine.Tick(c.Request.Context(), seasonID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *MarketHandler) status(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query unavailable", nil)
		return
	}
	seasonID := strings.TrimSpace(c.Param("season_id"))
	status, err := h.Query.Status(c.Request.Context(), seasonID)
	if err != nil {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	Ok(c, status, nil)
}

func (h *MarketHandler) listNegotiations(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Query.ListNegotiations(c.Request.Context(), service.ListNegotiationsQuery{
		SeasonID: strings.TrimSpace(c.Param("season_id")),
		Status:   strings.TrimSpace(c.Query("status")),
		PlayerID: strings.TrimSpace(c.Query("player_id")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

func (h *MarketHandler) listTransfers(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query unavailable", nil)
		return
	}
	items, err := h.Query.ListTransfers(c.Request.Context(), strings.TrimSpace(c.Param("season_id")))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
