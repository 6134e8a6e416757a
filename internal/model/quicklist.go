package model

import "time"

// ListKind 快速列表中的集合类型
type ListKind string

const (
	ListShortlisted ListKind = "shortlisted"
	ListBlocked     ListKind = "blocked"
	ListSent        ListKind = "sent"
	ListReceived    ListKind = "received"
	ListAccepted    ListKind = "accepted"
	ListDeclined    ListKind = "declined"
	ListViewers     ListKind = "viewers" // 看过我资料的人
)

// RelationLists 参与候选排除与汇总统计的六个关系集合
var RelationLists = []ListKind{
	ListShortlisted,
	ListBlocked,
	ListSent,
	ListReceived,
	ListAccepted,
	ListDeclined,
}

// QuickList 每个用户一行，保存浏览计数，同时作为该用户的行锁锚点
type QuickList struct {
	OwnerID                   uint64 `gorm:"primaryKey;autoIncrement:false"`
	TotalProfileViewsReceived int64  `gorm:"not null;default:0"`
	TotalProfileViewsGiven    int64  `gorm:"not null;default:0"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (QuickList) TableName() string {
	return "quick_lists"
}

// QuickListEntry 快速列表集合成员
type QuickListEntry struct {
	ID        uint64    `gorm:"primaryKey"`
	OwnerID   uint64    `gorm:"not null;uniqueIndex:uk_owner_list_member,priority:1;index:idx_owner_list_time,priority:1"`
	ListKind  ListKind  `gorm:"size:16;not null;uniqueIndex:uk_owner_list_member,priority:2;index:idx_owner_list_time,priority:2"`
	MemberID  uint64    `gorm:"not null;uniqueIndex:uk_owner_list_member,priority:3"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:idx_owner_list_time,priority:3"`
}

func (QuickListEntry) TableName() string {
	return "quick_list_entries"
}

// PairState 事务内加锁后读到的一对用户的当前关系
// ActorLists: target 出现在 actor 的哪些集合里；TargetLists 反之
type PairState struct {
	Actor       uint64
	Target      uint64
	ActorLists  map[ListKind]bool
	TargetLists map[ListKind]bool
}

// NewPairState 创建空关系
func NewPairState(actor, target uint64) *PairState {
	return &PairState{
		Actor:       actor,
		Target:      target,
		ActorLists:  map[ListKind]bool{},
		TargetLists: map[ListKind]bool{},
	}
}

// Summary 仪表盘汇总
type Summary struct {
	Shortlisted               int64 `json:"shortlisted"`
	Blocked                   int64 `json:"blocked"`
	SentMatchRequests         int64 `json:"sentMatchRequests"`
	ReceivedMatchRequests     int64 `json:"receivedMatchRequests"`
	AcceptedRequests          int64 `json:"acceptedRequests"`
	DeclinedRequests          int64 `json:"declinedRequests"`
	TotalProfileViewsReceived int64 `json:"totalProfileViewsReceived"`
	TotalProfileViewsGiven    int64 `json:"totalProfileViewsGiven"`
}
