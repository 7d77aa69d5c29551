package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transfermarket/internal/feed"
)

type FeedHandler struct {
	Hub *feed.Hub
}

func (h *FeedHandler) Register(r *gin.Engine) {
	r.GET("/ws/feed", h.serve)
}

func (h *FeedHandler) serve(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "feed disabled", nil)
		return
	}
	h.Hub.ServeWS(c.Writer, c.Request)
}
