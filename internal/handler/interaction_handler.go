package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"matrimony_match/internal/middleware"
	"matrimony_match/internal/model"
	"matrimony_match/internal/service"
)

type InteractionHandler struct {
	transitions *service.TransitionService
	listing     *service.ListingService
	status      *service.StatusService
}

func NewInteractionHandler(t *service.TransitionService, l *service.ListingService, s *service.StatusService) *InteractionHandler {
	return &InteractionHandler{transitions: t, listing: l, status: s}
}

type transitionFunc func(ctx context.Context, actor, target uint64) (*service.Result, error)

func (h *InteractionHandler) mutate(c *gin.Context, fn transitionFunc) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), middleware.UserID(c), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message})
}

func (h *InteractionHandler) list(c *gin.Context, kind model.ListKind) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.listing.List(c.Request.Context(), middleware.UserID(c), kind, q.Page, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Shortlist 收藏
func (h *InteractionHandler) Shortlist(c *gin.Context) { h.mutate(c, h.transitions.Shortlist) }

// RemoveShortlist 取消收藏
func (h *InteractionHandler) RemoveShortlist(c *gin.Context) {
	h.mutate(c, h.transitions.RemoveFromShortlist)
}

func (h *InteractionHandler) ListShortlisted(c *gin.Context) { h.list(c, model.ListShortlisted) }

// Block 屏蔽
func (h *InteractionHandler) Block(c *gin.Context) { h.mutate(c, h.transitions.Block) }

func (h *InteractionHandler) Unblock(c *gin.Context) { h.mutate(c, h.transitions.Unblock) }

func (h *InteractionHandler) ListBlocked(c *gin.Context) { h.list(c, model.ListBlocked) }

// SendMatchRequest 发送匹配请求
func (h *InteractionHandler) SendMatchRequest(c *gin.Context) {
	h.mutate(c, h.transitions.SendMatchRequest)
}

// AcceptMatchRequest :target 为请求发起人
func (h *InteractionHandler) AcceptMatchRequest(c *gin.Context) {
	h.mutate(c, h.transitions.AcceptMatchRequest)
}

func (h *InteractionHandler) DeclineMatchRequest(c *gin.Context) {
	h.mutate(c, h.transitions.DeclineMatchRequest)
}

// ListPending 收到的待处理请求
func (h *InteractionHandler) ListPending(c *gin.Context) { h.list(c, model.ListReceived) }

func (h *InteractionHandler) ListSent(c *gin.Context) { h.list(c, model.ListSent) }

func (h *InteractionHandler) ListAccepted(c *gin.Context) { h.list(c, model.ListAccepted) }

// Decline 跳过候选人
func (h *InteractionHandler) Decline(c *gin.Context) { h.mutate(c, h.transitions.Decline) }

func (h *InteractionHandler) RemoveDeclined(c *gin.Context) {
	h.mutate(c, h.transitions.RemoveFromDeclined)
}

func (h *InteractionHandler) ListDeclined(c *gin.Context) { h.list(c, model.ListDeclined) }

// View 记录一次资料浏览
func (h *InteractionHandler) View(c *gin.Context) { h.mutate(c, h.transitions.RecordProfileView) }

// ListRecentViews 最近看过我的人
func (h *InteractionHandler) ListRecentViews(c *gin.Context) { h.list(c, model.ListViewers) }

// Status 当前用户与 :target 的关系
func (h *InteractionHandler) Status(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	st, err := h.status.GetStatus(c.Request.Context(), middleware.UserID(c), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st})
}

// Summary 各集合数量与浏览计数
func (h *InteractionHandler) Summary(c *gin.Context) {
	sum, err := h.listing.GetSummary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// History 互动流水
func (h *InteractionHandler) History(c *gin.Context) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.listing.GetHistory(c.Request.Context(), middleware.UserID(c), q.Page, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
