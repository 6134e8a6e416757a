package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"matrimony_match/internal/service"
)

// pageQuery 列表分页参数
type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,gte=1,lte=1000000"`
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

func bindPage(c *gin.Context) (pageQuery, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": service.KindInvalidArgument, "message": "invalid page or limit"})
		return q, false
	}
	return q, true
}

// targetParam 读取路径上的 :target
func targetParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("target"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"kind": service.KindInvalidArgument, "message": "invalid target id"})
		return 0, false
	}
	return id, true
}

var statusByKind = map[service.ErrorKind]int{
	service.KindSelfReference:    http.StatusBadRequest,
	service.KindInvalidArgument:  http.StatusBadRequest,
	service.KindForbiddenBlocked: http.StatusForbidden,
	service.KindNotFound:         http.StatusNotFound,
	service.KindProfileNotFound:  http.StatusNotFound,
	service.KindAlreadyExists:    http.StatusConflict,
	service.KindAlreadyPending:   http.StatusConflict,
	service.KindAlreadyMatched:   http.StatusConflict,
	service.KindTransientFailure: http.StatusServiceUnavailable,
}

// writeError 业务错误按类型映射状态码，其余一律 500 且不暴露细节
func writeError(c *gin.Context, err error) {
	var re *service.RelationError
	if errors.As(err, &re) {
		code, ok := statusByKind[re.Kind]
		if !ok {
			code = http.StatusInternalServerError
		}
		c.JSON(code, gin.H{"kind": re.Kind, "message": re.Message})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"kind": "INTERNAL", "message": "internal server error"})
}
