package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	summaryhandler "stockwatcher/internal/feature/summaries/transport/handler"
	"stockwatcher/internal/platform/http/handler"
	jwtmw "stockwatcher/internal/platform/jwt"
)

// NewRouter は管理用のルーターを生成します。
func NewRouter(pinger handler.Pinger, summaries *summaryhandler.SummaryHandler, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	// ストアへの疎通確認
	r.GET("/readyz", handler.Ready(pinger, 2*time.Second))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 認証必須のルート
	admin := r.Group("/admin")
	admin.Use(jwtmw.AuthRequired(jwtSecret))
	{
		admin.POST("/daily-summaries", summaries.Trigger)
		admin.GET("/daily-summaries/status", summaries.Status)
		admin.GET("/summaries/:symbol/last-close", summaries.LastClose)
	}

	return r
}
