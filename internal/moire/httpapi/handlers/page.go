package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/web"
)

type PageHandler struct {
	page web.Page
}

func NewPageHandler(page web.Page) *PageHandler {
	if page.Title == "" {
		page.Title = "Twisted Graphene Simulator"
	}
	return &PageHandler{page: page}
}

func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page)
}
