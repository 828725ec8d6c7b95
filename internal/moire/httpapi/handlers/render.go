package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/engine"
	"github.com/yungbote/moire/internal/moire/httpapi/response"
	"github.com/yungbote/moire/internal/moire/system"
	"github.com/yungbote/moire/internal/platform/logger"
)

const downloadName = "twisted_graphene.png"

type RenderHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

func NewRenderHandler(e *engine.Engine, log *logger.Logger) *RenderHandler {
	return &RenderHandler{engine: e, log: log}
}

type schemaResponse struct {
	system.Schema
	Defaults map[system.Mode]map[system.RenderMode]system.Params `json:"defaults"`
}

// GET /api/v1/schema
func (h *RenderHandler) Schema(c *gin.Context) {
	s := schemaResponse{
		Schema:   system.Ranges(),
		Defaults: map[system.Mode]map[system.RenderMode]system.Params{},
	}
	for _, m := range s.Modes {
		s.Defaults[m] = map[system.RenderMode]system.Params{}
		for _, rm := range s.RenderModes {
			s.Defaults[m][rm] = system.Defaults(m, rm)
		}
	}
	response.RespondOK(c, s)
}

// GET /api/v1/plot.png
func (h *RenderHandler) Plot(c *gin.Context) {
	p, err := paramsFromQuery(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	view, err := engine.ParseView(c.Query("view"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	img, err := h.engine.Plot(c.Request.Context(), p, view)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	writePNG(c, img, "")
}

// GET /api/v1/download.png
func (h *RenderHandler) Download(c *gin.Context) {
	p, err := paramsFromQuery(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	img, err := h.engine.Download(c.Request.Context(), p)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	writePNG(c, img, downloadName)
}

// POST /api/v1/render
func (h *RenderHandler) Render(c *gin.Context) {
	var p system.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		if toAPIError(err).Status == http.StatusInternalServerError {
			err = &system.ParamError{Param: "body", Reason: err.Error()}
		}
		fail(c, h.log, err)
		return
	}
	s, err := h.engine.Summary(c.Request.Context(), p)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.RespondOK(c, s)
}

// GET /api/v1/lattice
func (h *RenderHandler) Lattice(c *gin.Context) {
	p, err := paramsFromQuery(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	cells, err := queryInt(c, "cells")
	if err != nil {
		fail(c, h.log, err)
		return
	}
	set, err := h.engine.Lattice(c.Request.Context(), p, cells)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.RespondOK(c, set)
}

func writePNG(c *gin.Context, img *engine.Image, attachment string) {
	cacheState := "miss"
	if img.Cached {
		cacheState = "hit"
	}
	c.Header("X-Render-Cache", cacheState)
	c.Header("Cache-Control", "no-cache")
	if attachment != "" {
		c.Header("Content-Disposition", `attachment; filename="`+attachment+`"`)
	}
	c.Data(http.StatusOK, "image/png", img.PNG)
}
