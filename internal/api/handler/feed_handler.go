package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/activity-feed/pkg/response"
)

// GetActionFeeds 查询 action 当前扇出到的用户
// @Summary 查询 action 的扇出集合
// @Tags Feed
// @Produce json
// @Security BearerAuth
// @Param action_id path string true "Action ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 500 {object} response.Response
// @Router /api/v1/actions/{action_id}/feeds [get]
func (h *Handler) GetActionFeeds(c *gin.Context) {
	actionID := c.Param("action_id")
	users, err := h.feeds.UserIDsByReference(c.Request.Context(), actionID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	response.Success(c, gin.H{"action_id": actionID, "user_ids": users})
}
