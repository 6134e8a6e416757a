package model

import "time"

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// InteractionOutbox 互动事件发件箱，与流水同事务写入，由 relay 异步投递
type InteractionOutbox struct {
	ID         uint64 `gorm:"primaryKey"`
	EventType  string `gorm:"size:32;not null"`
	FromUserID uint64 `gorm:"not null"`
	ToUserID   uint64 `gorm:"not null"`
	Payload    string `gorm:"type:json;not null"`
	Status     int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry      int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (InteractionOutbox) TableName() string { return "interaction_outbox" }
