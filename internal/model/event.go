package model

// Auth 事件携带的身份上下文
type Auth struct {
	UserID string `json:"userId" validate:"required"`
}

// ActivityCreated 活动创建事件
type ActivityCreated struct {
	Auth       Auth   `json:"auth"`
	ActivityID string `json:"activityId" validate:"required"`
	Action     string `json:"action" validate:"required"`
}

// ActivityUpdated 活动更新事件；activityId / commentId 按 verb 必填
type ActivityUpdated struct {
	Auth       Auth   `json:"auth"`
	Action     string `json:"action" validate:"required"`
	ActivityID string `json:"activityId,omitempty"`
	CommentID  string `json:"commentId,omitempty"`
}

// ActivityDeleted 活动删除事件
type ActivityDeleted struct {
	Auth       Auth   `json:"auth"`
	ActivityID string `json:"activityId" validate:"required"`
	Action     string `json:"action" validate:"required"`
}
