package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/activity-feed/internal/api/middleware"
	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/pkg/response"
)

type createdRequest struct {
	ActivityID string `json:"activityId" example:"9b2e6c1a-0d7f-4a8e-b0c4-3f1d2a6e7b90"`
	Action     string `json:"action" example:"create_activity"`
}

type updatedRequest struct {
	Action     string `json:"action" example:"join"`
	ActivityID string `json:"activityId,omitempty"`
	CommentID  string `json:"commentId,omitempty"`
}

type deletedRequest struct {
	ActivityID string `json:"activityId"`
	Action     string `json:"action" example:"delete_activity"`
}

// PublishCreated 发布活动创建事件
// @Summary 发布 activity created 事件
// @Tags 事件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createdRequest true "事件内容"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/events/created [post]
func (h *Handler) PublishCreated(c *gin.Context) {
	var req createdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.publish(c, h.streams.CreatedStream, model.ActivityCreated{
		Auth:       model.Auth{UserID: middleware.UserID(c)},
		ActivityID: req.ActivityID,
		Action:     req.Action,
	})
}

// PublishUpdated 发布活动更新事件
// @Summary 发布 activity updated 事件
// @Tags 事件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updatedRequest true "事件内容"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/events/updated [post]
func (h *Handler) PublishUpdated(c *gin.Context) {
	var req updatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.publish(c, h.streams.UpdatedStream, model.ActivityUpdated{
		Auth:       model.Auth{UserID: middleware.UserID(c)},
		Action:     req.Action,
		ActivityID: req.ActivityID,
		CommentID:  req.CommentID,
	})
}

// PublishDeleted 发布活动删除事件
// @Summary 发布 activity deleted 事件
// @Tags 事件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body deletedRequest true "事件内容"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/events/deleted [post]
func (h *Handler) PublishDeleted(c *gin.Context) {
	var req deletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.publish(c, h.streams.DeletedStream, model.ActivityDeleted{
		Auth:       model.Auth{UserID: middleware.UserID(c)},
		ActivityID: req.ActivityID,
		Action:     req.Action,
	})
}

// publish 校验规则与消费端一致，避免写入注定被丢弃的消息
func (h *Handler) publish(c *gin.Context, stream string, evt interface{}) {
	if err := h.validate.Struct(evt); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	id, err := h.publisher.Publish(c.Request.Context(), stream, payload)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Accepted(c, gin.H{"stream": stream, "message_id": id})
}
