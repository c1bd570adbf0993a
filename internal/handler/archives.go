package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noejunior792/hdl-ai-proteus/internal/storage"
)

// HandleGetArchive downloads a retained archive.
func (h *Handler) HandleGetArchive(c *gin.Context) {
	if h.archives == nil {
		NotFound(c, "archive retention is disabled")
		return
	}
	id := c.Param("id")
	data, err := h.archives.Load(c.Request.Context(), id)
	if err != nil {
		h.archiveError(c, id, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+id+"."+h.archives.Extension()+`"`)
	c.Header(HeaderArchiveID, id)
	c.Data(http.StatusOK, "application/zip", data)
}

// HandleDeleteArchive removes a retained archive.
func (h *Handler) HandleDeleteArchive(c *gin.Context) {
	if h.archives == nil {
		NotFound(c, "archive retention is disabled")
		return
	}
	id := c.Param("id")
	if err := h.archives.Remove(c.Request.Context(), id); err != nil {
		h.archiveError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) archiveError(c *gin.Context, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		NotFound(c, "archive "+id+" not found")
		return
	}
	h.logger.Error("archive storage failed", slog.String("archive_id", id), slog.String("error", err.Error()))
	respondPipelineError(c, err)
}
