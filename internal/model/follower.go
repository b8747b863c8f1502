package model

import "time"

// FollowerStatus 关注状态，只有 active 参与扇出
type FollowerStatus string

const (
	FollowerActive   FollowerStatus = "active"
	FollowerInactive FollowerStatus = "inactive"
)

// UserFollower 粉丝关系（FollowerID 关注 UserID）
type UserFollower struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)"`
	UserID     string         `gorm:"type:varchar(36);not null;index:idx_user_follower_status;uniqueIndex:ux_user_follower_pair"`
	FollowerID string         `gorm:"type:varchar(36);not null;uniqueIndex:ux_user_follower_pair"`
	Status     FollowerStatus `gorm:"type:varchar(16);not null;default:active;index:idx_user_follower_status"`
	// idx_user_follower_status = (user_id, status)
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserFollower) TableName() string { return "user_followers" }
