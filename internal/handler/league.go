package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"transfermarket/internal/service"
)

type LeagueHandler struct {
	Query *service.MarketQueryService
}

func (h *LeagueHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/teams", h.listTeams)
	group.GET("/players", h.listPlayers)
}

func (h *LeagueHandler) listTeams(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query unavailable", nil)
		return
	}
	items, err := h.Query.ListTeams(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *LeagueHandler) listPlayers(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query unavailable", nil)
		return
	}
	freeOnly := false
	if val := c.Query("free_only"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			freeOnly = parsed
		}
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	items, err := h.Query.ListPlayers(c.Request.Context(), service.ListPlayersQuery{
		TeamID:   strings.TrimSpace(c.Query("team_id")),
		FreeOnly: freeOnly,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}
