package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matrimony_match/internal/middleware"
	"matrimony_match/internal/service"
)

type CandidateHandler struct {
	svc *service.CandidateService
}

func NewCandidateHandler(svc *service.CandidateService) *CandidateHandler {
	return &CandidateHandler{svc: svc}
}

// NewMatches 未互动过的异性资料
func (h *CandidateHandler) NewMatches(c *gin.Context) { h.candidates(c, service.ModeNew) }

// PreferredMatches 再按择偶条件过滤
func (h *CandidateHandler) PreferredMatches(c *gin.Context) { h.candidates(c, service.ModePreferred) }

func (h *CandidateHandler) candidates(c *gin.Context, mode service.CandidateMode) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.svc.GetCandidates(c.Request.Context(), middleware.UserID(c), mode, q.Page, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
