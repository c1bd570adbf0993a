package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// HandleProviders lists every supported backend.
func (h *Handler) HandleProviders(c *gin.Context) {
	descs := h.registry.DescribeAll()
	c.JSON(http.StatusOK, gin.H{
		"providers":        descs,
		"count":            len(descs),
		"default_provider": h.defaultKind,
	})
}

// HandleTemplate returns a placeholder config for :type, as JSON or,
// with ?format=yaml, as YAML.
func (h *Handler) HandleTemplate(c *gin.Context) {
	tmpl, err := h.registry.Template(c.Param("type"))
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "yaml", "yml":
		out, err := yaml.Marshal(tmpl)
		if err != nil {
			respondPipelineError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", out)
	case "json":
		c.JSON(http.StatusOK, tmpl)
	default:
		BadRequest(c, "unknown format "+c.Query("format"), "use format=json or format=yaml")
	}
}
