package service

import (
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

// 屏蔽时双方需要清理的集合
var cascadeLists = []model.ListKind{
	model.ListShortlisted,
	model.ListSent,
	model.ListReceived,
	model.ListAccepted,
}

// 屏蔽时需要失效的流水类型
var cascadeKinds = []model.InteractionKind{
	model.KindShortlisted,
	model.KindMatchRequestSent,
	model.KindMatchRequestAccepted,
}

var liveStatuses = []model.InteractionStatus{model.StatusActive, model.StatusPending}

// computeCascade 屏蔽的连带效果：双向移除收藏/请求/匹配关系，并把双向仍生效的相关流水置为 expired
func computeCascade(st *model.PairState) ([]mysql.ListOp, []mysql.StatusTransition) {
	var ops []mysql.ListOp
	for _, l := range cascadeLists {
		if st.ActorLists[l] {
			ops = append(ops, removeOp(st.Actor, l, st.Target))
		}
		if st.TargetLists[l] {
			ops = append(ops, removeOp(st.Target, l, st.Actor))
		}
	}
	transitions := []mysql.StatusTransition{
		expireOp(st.Actor, st.Target, cascadeKinds...),
		expireOp(st.Target, st.Actor, cascadeKinds...),
	}
	return ops, transitions
}

func addOp(owner uint64, list model.ListKind, member uint64) mysql.ListOp {
	return mysql.ListOp{Owner: owner, List: list, Member: member}
}

func removeOp(owner uint64, list model.ListKind, member uint64) mysql.ListOp {
	return mysql.ListOp{Owner: owner, List: list, Member: member, Remove: true}
}

func expireOp(from, to uint64, kinds ...model.InteractionKind) mysql.StatusTransition {
	return mysql.StatusTransition{
		From:         from,
		To:           to,
		Kinds:        kinds,
		FromStatuses: liveStatuses,
		ToStatus:     model.StatusExpired,
	}
}

func newEvent(from, to uint64, kind model.InteractionKind, status model.InteractionStatus, meta map[string]any) *model.Interaction {
	return &model.Interaction{
		FromUserID: from,
		ToUserID:   to,
		Kind:       kind,
		Status:     status,
		Metadata:   meta,
	}
}
