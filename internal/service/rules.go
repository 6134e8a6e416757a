package service

import (
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

// 以下函数只依赖加锁后的关系快照，返回需要整体提交的变更

func isBlocked(st *model.PairState) bool {
	return st.ActorLists[model.ListBlocked] || st.TargetLists[model.ListBlocked]
}

func decideShortlist(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return nil, ErrSelfReference
	}
	if isBlocked(st) {
		return nil, ErrBlockedRelationship
	}
	if st.ActorLists[model.ListShortlisted] {
		return nil, ErrAlreadyExists
	}
	return &mysql.Change{
		Events:  []*model.Interaction{newEvent(st.Actor, st.Target, model.KindShortlisted, model.StatusActive, nil)},
		ListOps: []mysql.ListOp{addOp(st.Actor, model.ListShortlisted, st.Target)},
	}, nil
}

// decideRemoveFromShortlist 不在收藏里时返回空变更
func decideRemoveFromShortlist(st *model.PairState) (*mysql.Change, error) {
	if !st.ActorLists[model.ListShortlisted] {
		return &mysql.Change{}, nil
	}
	return &mysql.Change{
		Transitions: []mysql.StatusTransition{expireOp(st.Actor, st.Target, model.KindShortlisted)},
		Events:      []*model.Interaction{newEvent(st.Actor, st.Target, model.KindRemovedFromShortlist, model.StatusActive, nil)},
		ListOps:     []mysql.ListOp{removeOp(st.Actor, model.ListShortlisted, st.Target)},
	}, nil
}

func decideBlock(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return nil, ErrSelfReference
	}
	if st.ActorLists[model.ListBlocked] {
		return nil, ErrAlreadyExists
	}
	cascade, transitions := computeCascade(st)
	meta := map[string]any{"cascade_removed": len(cascade)}
	return &mysql.Change{
		Transitions: transitions,
		Events:      []*model.Interaction{newEvent(st.Actor, st.Target, model.KindBlocked, model.StatusActive, meta)},
		ListOps:     append([]mysql.ListOp{addOp(st.Actor, model.ListBlocked, st.Target)}, cascade...),
	}, nil
}

// decideUnblock 不恢复屏蔽前被清理的关系
func decideUnblock(st *model.PairState) (*mysql.Change, error) {
	if !st.ActorLists[model.ListBlocked] {
		return &mysql.Change{}, nil
	}
	return &mysql.Change{
		Transitions: []mysql.StatusTransition{expireOp(st.Actor, st.Target, model.KindBlocked)},
		Events:      []*model.Interaction{newEvent(st.Actor, st.Target, model.KindUnblocked, model.StatusActive, nil)},
		ListOps:     []mysql.ListOp{removeOp(st.Actor, model.ListBlocked, st.Target)},
	}, nil
}

// decideSendMatchRequest 对方已向我发出待处理请求时直接接受，第二个返回值表示是否因此匹配成功
func decideSendMatchRequest(st *model.PairState) (*mysql.Change, bool, error) {
	if st.Actor == st.Target {
		return nil, false, ErrSelfReference
	}
	if isBlocked(st) {
		return nil, false, ErrForbiddenBlocked
	}
	if st.ActorLists[model.ListAccepted] {
		return nil, false, ErrAlreadyMatched
	}
	if st.ActorLists[model.ListSent] {
		return nil, false, ErrAlreadyPending
	}
	if st.ActorLists[model.ListReceived] {
		c, err := acceptChange(st, true)
		return c, true, err
	}

	c := &mysql.Change{
		Events: []*model.Interaction{newEvent(st.Actor, st.Target, model.KindMatchRequestSent, model.StatusPending, nil)},
		ListOps: []mysql.ListOp{
			addOp(st.Actor, model.ListSent, st.Target),
			addOp(st.Target, model.ListReceived, st.Actor),
		},
	}
	// 主动发请求等于撤回之前的拒绝
	if st.ActorLists[model.ListDeclined] {
		c.Transitions = append(c.Transitions,
			expireOp(st.Actor, st.Target, model.KindDeclined, model.KindMatchRequestDeclined))
		c.ListOps = append(c.ListOps, removeOp(st.Actor, model.ListDeclined, st.Target))
	}
	return c, false, nil
}

// decideAcceptMatchRequest actor 接受 target 发来的请求
func decideAcceptMatchRequest(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return nil, ErrSelfReference
	}
	return acceptChange(st, false)
}

func acceptChange(st *model.PairState, auto bool) (*mysql.Change, error) {
	if !st.ActorLists[model.ListReceived] {
		return nil, ErrNotFound
	}
	meta := map[string]any{"request_from": st.Target}
	if auto {
		meta["auto_accepted"] = true
	}
	return &mysql.Change{
		Transitions: []mysql.StatusTransition{{
			From:         st.Target,
			To:           st.Actor,
			Kinds:        []model.InteractionKind{model.KindMatchRequestSent},
			FromStatuses: []model.InteractionStatus{model.StatusPending},
			ToStatus:     model.StatusAccepted,
		}},
		Events: []*model.Interaction{newEvent(st.Actor, st.Target, model.KindMatchRequestAccepted, model.StatusActive, meta)},
		ListOps: []mysql.ListOp{
			addOp(st.Actor, model.ListAccepted, st.Target),
			removeOp(st.Actor, model.ListReceived, st.Target),
			addOp(st.Target, model.ListAccepted, st.Actor),
			removeOp(st.Target, model.ListSent, st.Actor),
		},
	}, nil
}

// decideDeclineMatchRequest actor 拒绝 target 发来的请求
func decideDeclineMatchRequest(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return nil, ErrSelfReference
	}
	if !st.ActorLists[model.ListReceived] {
		return nil, ErrNotFound
	}
	return &mysql.Change{
		Transitions: []mysql.StatusTransition{{
			From:         st.Target,
			To:           st.Actor,
			Kinds:        []model.InteractionKind{model.KindMatchRequestSent},
			FromStatuses: []model.InteractionStatus{model.StatusPending},
			ToStatus:     model.StatusDeclined,
		}},
		Events: []*model.Interaction{newEvent(st.Actor, st.Target, model.KindMatchRequestDeclined, model.StatusActive,
			map[string]any{"request_from": st.Target})},
		ListOps: []mysql.ListOp{
			removeOp(st.Actor, model.ListReceived, st.Target),
			removeOp(st.Target, model.ListSent, st.Actor),
			addOp(st.Actor, model.ListDeclined, st.Target),
		},
	}, nil
}

// decideDecline 直接跳过某个候选人
func decideDecline(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return nil, ErrSelfReference
	}
	if st.ActorLists[model.ListDeclined] {
		return nil, ErrAlreadyExists
	}
	return &mysql.Change{
		Events:  []*model.Interaction{newEvent(st.Actor, st.Target, model.KindDeclined, model.StatusActive, nil)},
		ListOps: []mysql.ListOp{addOp(st.Actor, model.ListDeclined, st.Target)},
	}, nil
}

func decideRemoveFromDeclined(st *model.PairState) (*mysql.Change, error) {
	if !st.ActorLists[model.ListDeclined] {
		return &mysql.Change{}, nil
	}
	return &mysql.Change{
		Transitions: []mysql.StatusTransition{
			expireOp(st.Actor, st.Target, model.KindDeclined, model.KindMatchRequestDeclined),
		},
		Events:  []*model.Interaction{newEvent(st.Actor, st.Target, model.KindRemovedFromDeclined, model.StatusActive, nil)},
		ListOps: []mysql.ListOp{removeOp(st.Actor, model.ListDeclined, st.Target)},
	}, nil
}

func decideProfileView(st *model.PairState) (*mysql.Change, error) {
	if st.Actor == st.Target {
		return &mysql.Change{}, nil
	}
	return &mysql.Change{
		Events:  []*model.Interaction{newEvent(st.Actor, st.Target, model.KindProfileViewed, model.StatusActive, nil)},
		ListOps: []mysql.ListOp{addOp(st.Target, model.ListViewers, st.Actor)},
		Counters: []mysql.CounterOp{
			{Owner: st.Actor, Given: 1},
			{Owner: st.Target, Received: 1},
		},
	}, nil
}
