package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facility-form-backend/internal/directory"
	"facility-form-backend/internal/form"
)

// invalidator is implemented by directories that cache the agent list.
type invalidator interface {
	Invalidate()
}

// GetAuthorizableProperties lists the categories a reporter can be granted.
func (h *Handler) GetAuthorizableProperties(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": form.AuthorizableProperties})
}

// GetAgents lists the agents a reporter can be chosen from, without the
// service's own identity. ?refresh=true refetches from the ledger.
func (h *Handler) GetAgents(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if inv, ok := h.directory.(invalidator); ok {
			inv.Invalidate()
		}
	}

	agents, err := h.directory.Agents(c.Request.Context())
	if err != nil {
		h.log.Warn("failed to load agent directory", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": directory.Filter(agents, h.directory.SelfKey())})
}
