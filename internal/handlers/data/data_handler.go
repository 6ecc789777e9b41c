// internal/handlers/data/data_handler.go
package data

import (
	"errors"
	"net/http"
	"strconv"

	xerrors "syncbridge-service/internal/pkg/errors"
	"syncbridge-service/internal/pkg/response"
	"syncbridge-service/internal/service/reporting"

	"github.com/gin-gonic/gin"
)

type DataHandler struct {
	reporting *reporting.Service
}

func NewDataHandler(reportingService *reporting.Service) *DataHandler {
	return &DataHandler{reporting: reportingService}
}

// ListAgents returns all agents with their current presence.
func (h *DataHandler) ListAgents(c *gin.Context) {
	states, err := h.reporting.ListAgentStates(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list agents", err)
		return
	}

	response.Success(c, http.StatusOK, "agents retrieved", states)
}

// GetAgent returns one agent with its current presence.
func (h *DataHandler) GetAgent(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid agent ID", err)
		return
	}

	state, err := h.reporting.AgentState(c.Request.Context(), agentID)
	if errors.Is(err, xerrors.ErrNotFound) {
		response.NotFound(c, "agent not found")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to retrieve agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent retrieved", state)
}

// GetAgentHistory returns the recent presence log for an agent.
func (h *DataHandler) GetAgentHistory(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid agent ID", err)
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	history, err := h.reporting.AgentHistory(c.Request.Context(), agentID, limit)
	if errors.Is(err, xerrors.ErrNotFound) {
		response.NotFound(c, "agent not found")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to retrieve history", err)
		return
	}

	response.Success(c, http.StatusOK, "history retrieved", history)
}

// ListConversations returns paginated conversations with message counts.
func (h *DataHandler) ListConversations(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	convs, total, err := h.reporting.ListConversations(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}

	response.Success(c, http.StatusOK, "conversations retrieved", gin.H{
		"conversations": convs,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetConversation returns one conversation with messages and related records.
func (h *DataHandler) GetConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid conversation ID", err)
		return
	}

	detail, err := h.reporting.ConversationDetail(c.Request.Context(), id)
	if errors.Is(err, xerrors.ErrNotFound) {
		response.NotFound(c, "conversation not found")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to retrieve conversation", err)
		return
	}

	response.Success(c, http.StatusOK, "conversation retrieved", detail)
}

// ListSyncLogs returns paginated sync log entries.
func (h *DataHandler) ListSyncLogs(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	entries, total, err := h.reporting.ListSyncLogs(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list sync logs", err)
		return
	}

	response.Success(c, http.StatusOK, "sync logs retrieved", gin.H{
		"logs":   entries,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetStats returns the dashboard snapshot.
func (h *DataHandler) GetStats(c *gin.Context) {
	stats, err := h.reporting.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats retrieved", stats)
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
