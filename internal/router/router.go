package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"matrimony_match/internal/handler"
	"matrimony_match/internal/middleware"
)

// Deps 路由需要的处理器与中间件
type Deps struct {
	Log          *zap.Logger
	JWTSecret    []byte
	Limiter      *middleware.RateLimiter
	Interactions *handler.InteractionHandler
	Candidates   *handler.CandidateHandler
	Gatherer     prometheus.Gatherer
	// Health 存储连通性检查
	Health func(ctx context.Context) error
}

func InitRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(d.Log))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(d.JWTSecret))

	// 写操作限流
	write := api.Group("")
	if d.Limiter != nil {
		write.Use(d.Limiter.Middleware())
	}

	in := d.Interactions
	// 收藏
	write.POST("/shortlist/:target", in.Shortlist)
	write.POST("/shortlist/remove/:target", in.RemoveShortlist)
	api.GET("/shortlisted", in.ListShortlisted)

	// 屏蔽
	write.POST("/block/:target", in.Block)
	write.POST("/block/remove/:target", in.Unblock)
	api.GET("/blocked", in.ListBlocked)

	// 匹配请求
	write.POST("/match-request/:target", in.SendMatchRequest)
	write.POST("/match-request/accept/:target", in.AcceptMatchRequest)
	write.POST("/match-request/decline/:target", in.DeclineMatchRequest)
	api.GET("/match-requests/pending", in.ListPending)
	api.GET("/match-requests/sent", in.ListSent)
	api.GET("/accepted-requests", in.ListAccepted)

	// 跳过
	write.POST("/decline/:target", in.Decline)
	write.POST("/decline/remove/:target", in.RemoveDeclined)
	api.GET("/declined", in.ListDeclined)

	// 浏览
	write.POST("/view/:target", in.View)
	api.GET("/recent-views", in.ListRecentViews)

	api.GET("/status/:target", in.Status)
	api.GET("/summary", in.Summary)
	api.GET("/history", in.History)

	if d.Candidates != nil {
		api.GET("/matches/new", d.Candidates.NewMatches)
		api.GET("/matches/preferred", d.Candidates.PreferredMatches)
	}
	return r
}

// WithCORS 给前端跨域访问包一层 CORS
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}).Handler(h)
}
