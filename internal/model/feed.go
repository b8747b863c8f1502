package model

import "time"

// Feed 动态流条目：ReferenceID 对应的 Action 出现在 UserID 的动态流中
type Feed struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	UserID      string `gorm:"type:varchar(36);not null;uniqueIndex:ux_feed_user_reference"`
	ReferenceID string `gorm:"type:varchar(36);not null;index:idx_feed_reference;uniqueIndex:ux_feed_user_reference"`
	// 复合唯一键，重复扇出不会产生重复行
	// ux_feed_user_reference = (user_id, reference_id)
	CreatedAt time.Time
}

func (Feed) TableName() string { return "feeds" }
