package model

import "time"

// 以下记录的生命周期归属于活动，按 activity_id 批量删除

// Invitee 活动邀请
type Invitee struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"type:varchar(36);not null;index:idx_invitee_activity"`
	UserID     string `gorm:"type:varchar(36);not null"`
	CreatedAt  time.Time
}

func (Invitee) TableName() string { return "invitees" }

// Like 活动点赞
type Like struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"type:varchar(36);not null;index:idx_like_activity"`
	UserID     string `gorm:"type:varchar(36);not null"`
	CreatedAt  time.Time
}

func (Like) TableName() string { return "likes" }

// Photo 活动照片
type Photo struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"type:varchar(36);not null;index:idx_photo_activity"`
	UserID     string `gorm:"type:varchar(36);not null"`
	URL        string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (Photo) TableName() string { return "photos" }

// Rsvp 活动报名
type Rsvp struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"type:varchar(36);not null;index:idx_rsvp_activity"`
	UserID     string `gorm:"type:varchar(36);not null"`
	Status     string `gorm:"type:varchar(16)"`
	CreatedAt  time.Time
}

func (Rsvp) TableName() string { return "rsvps" }

// Comment 活动评论；PhotoID 非空时为照片评论
type Comment struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string  `gorm:"type:varchar(36);not null;index:idx_comment_activity"`
	UserID     string  `gorm:"type:varchar(36);not null"`
	PhotoID    *string `gorm:"type:varchar(36)"`
	Body       string  `gorm:"type:text"`
	CreatedAt  time.Time
}

func (Comment) TableName() string { return "comments" }

// AllTables returns every table managed by this service.
func AllTables() []interface{} {
	return []interface{}{
		&Action{}, &Feed{}, &UserFollower{},
		&Invitee{}, &Like{}, &Photo{}, &Rsvp{}, &Comment{},
	}
}
