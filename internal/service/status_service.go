package service

import (
	"context"

	"gorm.io/gorm"

	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

// RelationshipStatus from 视角下与 to 的关系
type RelationshipStatus string

const (
	StatusBlockedByYou    RelationshipStatus = "blocked_by_you"
	StatusBlockedByThem   RelationshipStatus = "blocked_by_them"
	StatusMatched         RelationshipStatus = "matched"
	StatusRequestSent     RelationshipStatus = "request_sent"
	StatusRequestReceived RelationshipStatus = "request_received"
	StatusShortlisted     RelationshipStatus = "shortlisted"
	StatusNone            RelationshipStatus = "none"
)

// resolveStatus 多个集合同时命中时按优先级取第一个
func resolveStatus(st *model.PairState) RelationshipStatus {
	if st.Actor == st.Target {
		return StatusNone
	}
	switch {
	case st.ActorLists[model.ListBlocked]:
		return StatusBlockedByYou
	case st.TargetLists[model.ListBlocked]:
		return StatusBlockedByThem
	case st.ActorLists[model.ListAccepted]:
		return StatusMatched
	case st.ActorLists[model.ListSent]:
		return StatusRequestSent
	case st.ActorLists[model.ListReceived]:
		return StatusRequestReceived
	case st.ActorLists[model.ListShortlisted]:
		return StatusShortlisted
	}
	return StatusNone
}

type StatusService struct {
	repo *mysql.QuickListRepository
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{repo: &mysql.QuickListRepository{DB: db}}
}

// GetStatus 只读，不加锁
func (s *StatusService) GetStatus(ctx context.Context, from, to uint64) (RelationshipStatus, error) {
	if from == 0 || to == 0 {
		return "", ErrInvalidArgument
	}
	if from == to {
		return StatusNone, nil
	}
	st, err := s.repo.LoadPairState(ctx, from, to)
	if err != nil {
		return "", err
	}
	return resolveStatus(st), nil
}
