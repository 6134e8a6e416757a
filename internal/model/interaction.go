package model

import (
	"time"

	"gorm.io/gorm"
)

// InteractionKind 互动事件类型
type InteractionKind string

const (
	KindShortlisted          InteractionKind = "shortlisted"
	KindRemovedFromShortlist InteractionKind = "removed_from_shortlist"
	KindBlocked              InteractionKind = "blocked"
	KindUnblocked            InteractionKind = "unblocked"
	KindMatchRequestSent     InteractionKind = "match_request_sent"
	KindMatchRequestAccepted InteractionKind = "match_request_accepted"
	KindMatchRequestDeclined InteractionKind = "match_request_declined"
	KindDeclined             InteractionKind = "declined"
	KindRemovedFromDeclined  InteractionKind = "removed_from_declined"
	KindProfileViewed        InteractionKind = "profile_viewed"
)

// InteractionStatus 互动事件状态
type InteractionStatus string

const (
	StatusActive   InteractionStatus = "active"
	StatusPending  InteractionStatus = "pending"
	StatusAccepted InteractionStatus = "accepted"
	StatusDeclined InteractionStatus = "declined"
	StatusExpired  InteractionStatus = "expired"
)

// Interaction 互动流水（只追加），除 status 迁移外写入后不再修改
type Interaction struct {
	ID         uint64            `gorm:"primaryKey"`
	FromUserID uint64            `gorm:"not null;index:idx_pair_kind_status,priority:1"`
	ToUserID   uint64            `gorm:"not null;index:idx_pair_kind_status,priority:2;index:idx_to_time,priority:1"`
	Kind       InteractionKind   `gorm:"size:32;not null;index:idx_pair_kind_status,priority:3"`
	Status     InteractionStatus `gorm:"size:16;not null;index:idx_pair_kind_status,priority:4"`
	Metadata   map[string]any    `gorm:"serializer:json;type:json"`
	CreatedAt  time.Time         `gorm:"index:idx_to_time,priority:2"`
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (Interaction) TableName() string {
	return "interactions"
}
