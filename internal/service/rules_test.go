package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

func pair(actor, target uint64, actorLists, targetLists []model.ListKind) *model.PairState {
	st := model.NewPairState(actor, target)
	for _, l := range actorLists {
		st.ActorLists[l] = true
	}
	for _, l := range targetLists {
		st.TargetLists[l] = true
	}
	return st
}

func TestComputeCascade(t *testing.T) {
	st := pair(1, 2,
		[]model.ListKind{model.ListShortlisted, model.ListSent, model.ListDeclined},
		[]model.ListKind{model.ListReceived, model.ListAccepted, model.ListViewers})

	ops, transitions := computeCascade(st)

	assert.ElementsMatch(t, []mysql.ListOp{
		{Owner: 1, List: model.ListShortlisted, Member: 2, Remove: true},
		{Owner: 1, List: model.ListSent, Member: 2, Remove: true},
		{Owner: 2, List: model.ListReceived, Member: 1, Remove: true},
		{Owner: 2, List: model.ListAccepted, Member: 1, Remove: true},
	}, ops)

	require.Len(t, transitions, 2)
	for _, tr := range transitions {
		assert.ElementsMatch(t, cascadeKinds, tr.Kinds)
		assert.ElementsMatch(t, []model.InteractionStatus{model.StatusActive, model.StatusPending}, tr.FromStatuses)
		assert.Equal(t, model.StatusExpired, tr.ToStatus)
	}
	assert.Equal(t, [2]uint64{1, 2}, [2]uint64{transitions[0].From, transitions[0].To})
	assert.Equal(t, [2]uint64{2, 1}, [2]uint64{transitions[1].From, transitions[1].To})
}

func TestComputeCascade_NothingToRemove(t *testing.T) {
	ops, transitions := computeCascade(pair(1, 2, nil, nil))
	assert.Empty(t, ops)
	assert.Len(t, transitions, 2)
}

func TestDecideErrors(t *testing.T) {
	sendOnly := func(st *model.PairState) (*mysql.Change, error) {
		c, _, err := decideSendMatchRequest(st)
		return c, err
	}
	tests := []struct {
		name   string
		decide mysql.Decide
		st     *model.PairState
		want   error
	}{
		{"shortlist self", decideShortlist, pair(1, 1, nil, nil), ErrSelfReference},
		{"shortlist blocked by actor", decideShortlist, pair(1, 2, []model.ListKind{model.ListBlocked}, nil), ErrBlockedRelationship},
		{"shortlist blocked by target", decideShortlist, pair(1, 2, nil, []model.ListKind{model.ListBlocked}), ErrForbiddenBlocked},
		{"shortlist twice", decideShortlist, pair(1, 2, []model.ListKind{model.ListShortlisted}, nil), ErrAlreadyExists},
		{"block self", decideBlock, pair(3, 3, nil, nil), ErrSelfReference},
		{"block twice", decideBlock, pair(1, 2, []model.ListKind{model.ListBlocked}, nil), ErrAlreadyExists},
		{"request blocked", sendOnly, pair(1, 2, nil, []model.ListKind{model.ListBlocked}), ErrForbiddenBlocked},
		{"request matched", sendOnly, pair(1, 2, []model.ListKind{model.ListAccepted}, []model.ListKind{model.ListAccepted}), ErrAlreadyMatched},
		{"request pending", sendOnly, pair(1, 2, []model.ListKind{model.ListSent}, []model.ListKind{model.ListReceived}), ErrAlreadyPending},
		{"accept without request", decideAcceptMatchRequest, pair(1, 2, nil, nil), ErrNotFound},
		{"accept own request", decideAcceptMatchRequest, pair(1, 2, []model.ListKind{model.ListSent}, []model.ListKind{model.ListReceived}), ErrNotFound},
		{"decline request without request", decideDeclineMatchRequest, pair(1, 2, nil, nil), ErrNotFound},
		{"decline twice", decideDecline, pair(1, 2, []model.ListKind{model.ListDeclined}, nil), ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.decide(tt.st)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, c)
		})
	}
}

func TestDecideRemovalsAbsentAreNoop(t *testing.T) {
	for name, decide := range map[string]mysql.Decide{
		"remove shortlist": decideRemoveFromShortlist,
		"unblock":          decideUnblock,
		"remove declined":  decideRemoveFromDeclined,
		"self view":        decideProfileView,
	} {
		t.Run(name, func(t *testing.T) {
			st := pair(1, 2, nil, nil)
			if name == "self view" {
				st = pair(1, 1, nil, nil)
			}
			c, err := decide(st)
			require.NoError(t, err)
			assert.True(t, c.Empty())
		})
	}
}

func TestDecideBlock_CascadeAndEvent(t *testing.T) {
	st := pair(1, 2,
		[]model.ListKind{model.ListShortlisted, model.ListAccepted},
		[]model.ListKind{model.ListAccepted, model.ListShortlisted})
	c, err := decideBlock(st)
	require.NoError(t, err)

	require.Len(t, c.Events, 1)
	assert.Equal(t, model.KindBlocked, c.Events[0].Kind)
	assert.Equal(t, model.StatusActive, c.Events[0].Status)
	assert.Equal(t, 4, c.Events[0].Metadata["cascade_removed"])
	assert.Contains(t, c.ListOps, mysql.ListOp{Owner: 1, List: model.ListBlocked, Member: 2})
	assert.Len(t, c.ListOps, 5)
}

func TestDecideSendMatchRequest(t *testing.T) {
	t.Run("plain request", func(t *testing.T) {
		c, matched, err := decideSendMatchRequest(pair(1, 2, nil, nil))
		require.NoError(t, err)
		assert.False(t, matched)
		require.Len(t, c.Events, 1)
		assert.Equal(t, model.KindMatchRequestSent, c.Events[0].Kind)
		assert.Equal(t, model.StatusPending, c.Events[0].Status)
		assert.ElementsMatch(t, []mysql.ListOp{
			{Owner: 1, List: model.ListSent, Member: 2},
			{Owner: 2, List: model.ListReceived, Member: 1},
		}, c.ListOps)
		assert.Empty(t, c.Transitions)
	})

	t.Run("reverse pending auto accepts", func(t *testing.T) {
		c, matched, err := decideSendMatchRequest(pair(1, 2, []model.ListKind{model.ListReceived}, []model.ListKind{model.ListSent}))
		require.NoError(t, err)
		assert.True(t, matched)
		require.Len(t, c.Events, 1)
		assert.Equal(t, model.KindMatchRequestAccepted, c.Events[0].Kind)
		assert.Equal(t, true, c.Events[0].Metadata["auto_accepted"])
		assert.Contains(t, c.ListOps, mysql.ListOp{Owner: 1, List: model.ListAccepted, Member: 2})
		assert.Contains(t, c.ListOps, mysql.ListOp{Owner: 2, List: model.ListAccepted, Member: 1})
	})

	t.Run("withdraws earlier decline", func(t *testing.T) {
		c, _, err := decideSendMatchRequest(pair(1, 2, []model.ListKind{model.ListDeclined}, nil))
		require.NoError(t, err)
		assert.Contains(t, c.ListOps, mysql.ListOp{Owner: 1, List: model.ListDeclined, Member: 2, Remove: true})
		require.Len(t, c.Transitions, 1)
		assert.Equal(t, model.StatusExpired, c.Transitions[0].ToStatus)
	})
}

func TestDecideAccept_Symmetric(t *testing.T) {
	c, err := decideAcceptMatchRequest(pair(2, 1, []model.ListKind{model.ListReceived}, []model.ListKind{model.ListSent}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []mysql.ListOp{
		{Owner: 2, List: model.ListAccepted, Member: 1},
		{Owner: 2, List: model.ListReceived, Member: 1, Remove: true},
		{Owner: 1, List: model.ListAccepted, Member: 2},
		{Owner: 1, List: model.ListSent, Member: 2, Remove: true},
	}, c.ListOps)
	require.Len(t, c.Transitions, 1)
	assert.Equal(t, uint64(1), c.Transitions[0].From)
	assert.Equal(t, uint64(2), c.Transitions[0].To)
	assert.Equal(t, model.StatusAccepted, c.Transitions[0].ToStatus)
	_, auto := c.Events[0].Metadata["auto_accepted"]
	assert.False(t, auto)
}

func TestDecideProfileView(t *testing.T) {
	c, err := decideProfileView(pair(1, 2, nil, nil))
	require.NoError(t, err)
	assert.ElementsMatch(t, []mysql.CounterOp{{Owner: 1, Given: 1}, {Owner: 2, Received: 1}}, c.Counters)
	assert.Equal(t, []mysql.ListOp{{Owner: 2, List: model.ListViewers, Member: 1}}, c.ListOps)
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name string
		st   *model.PairState
		want RelationshipStatus
	}{
		{"self", pair(1, 1, []model.ListKind{model.ListBlocked}, nil), StatusNone},
		{"nothing", pair(1, 2, nil, nil), StatusNone},
		{"block dominates residue", pair(1, 2, []model.ListKind{model.ListBlocked, model.ListAccepted, model.ListShortlisted}, []model.ListKind{model.ListBlocked}), StatusBlockedByYou},
		{"blocked by them", pair(1, 2, []model.ListKind{model.ListShortlisted}, []model.ListKind{model.ListBlocked}), StatusBlockedByThem},
		{"matched over shortlist", pair(1, 2, []model.ListKind{model.ListAccepted, model.ListShortlisted}, nil), StatusMatched},
		{"sent", pair(1, 2, []model.ListKind{model.ListSent, model.ListShortlisted}, nil), StatusRequestSent},
		{"received", pair(1, 2, []model.ListKind{model.ListReceived}, nil), StatusRequestReceived},
		{"shortlisted", pair(1, 2, []model.ListKind{model.ListShortlisted, model.ListDeclined}, nil), StatusShortlisted},
		{"declined only", pair(1, 2, []model.ListKind{model.ListDeclined}, nil), StatusNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveStatus(tt.st))
		})
	}
}

func TestReplay(t *testing.T) {
	t0 := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }
	events := []model.Interaction{
		{FromUserID: 1, ToUserID: 2, Kind: model.KindShortlisted, Status: model.StatusActive, CreatedAt: at(0)},
		{FromUserID: 1, ToUserID: 3, Kind: model.KindMatchRequestSent, Status: model.StatusPending, CreatedAt: at(1)},
		{FromUserID: 4, ToUserID: 1, Kind: model.KindMatchRequestSent, Status: model.StatusPending, CreatedAt: at(2)},
		{FromUserID: 5, ToUserID: 1, Kind: model.KindMatchRequestAccepted, Status: model.StatusActive, CreatedAt: at(3)},
		{FromUserID: 6, ToUserID: 1, Kind: model.KindBlocked, Status: model.StatusActive, CreatedAt: at(4)},
		{FromUserID: 1, ToUserID: 7, Kind: model.KindDeclined, Status: model.StatusActive, CreatedAt: at(5)},
		{FromUserID: 8, ToUserID: 1, Kind: model.KindProfileViewed, Status: model.StatusActive, CreatedAt: at(6)},
		{FromUserID: 8, ToUserID: 1, Kind: model.KindProfileViewed, Status: model.StatusActive, CreatedAt: at(7)},
		{FromUserID: 1, ToUserID: 9, Kind: model.KindProfileViewed, Status: model.StatusActive, CreatedAt: at(8)},
		{FromUserID: 1, ToUserID: 2, Kind: model.KindRemovedFromShortlist, Status: model.StatusActive, CreatedAt: at(9)},
	}

	rows, given, received := replay(1, events)
	assert.Equal(t, int64(1), given)
	assert.Equal(t, int64(2), received)

	got := map[model.ListKind][]uint64{}
	var viewerSeen time.Time
	for _, r := range rows {
		assert.Equal(t, uint64(1), r.OwnerID)
		got[r.ListKind] = append(got[r.ListKind], r.MemberID)
		if r.ListKind == model.ListViewers {
			viewerSeen = r.UpdatedAt
		}
	}
	assert.Equal(t, map[model.ListKind][]uint64{
		model.ListShortlisted: {2},
		model.ListSent:        {3},
		model.ListReceived:    {4},
		model.ListAccepted:    {5},
		model.ListDeclined:    {7},
		model.ListViewers:     {8},
	}, got)
	assert.Equal(t, at(7), viewerSeen)
}
