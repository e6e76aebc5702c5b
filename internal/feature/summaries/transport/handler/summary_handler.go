// Package handler は日次サマリーの管理用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stockwatcher/internal/feature/summaries/usecase"
	platformhandler "stockwatcher/internal/platform/http/handler"
	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// SummaryUsecase は集計ジョブの起動と状態取得を定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SummaryUsecase interface {
	// TryStart は実行中でなければ実行を予約し、その実行を行う関数を返します。
	TryStart() (func(ctx context.Context) (usecase.Report, error), bool)
	Status() usecase.Status
}

// ClosePriceReader は直近の終値を返します。
type ClosePriceReader interface {
	GetLastClosePriceForSymbol(ctx context.Context, symbol string, opts ...store.Option) (decimal.Decimal, error)
}

// SummaryHandler は集計ジョブの管理リクエストを処理します。
type SummaryHandler struct {
	uc     SummaryUsecase
	prices ClosePriceReader
	// 手動起動した集計はリクエストではなくサーバーの寿命に従う
	baseCtx context.Context
}

// NewSummaryHandler は新しい SummaryHandler を生成します。baseCtx はバックグラウンド実行の親です。
func NewSummaryHandler(baseCtx context.Context, uc SummaryUsecase, prices ClosePriceReader) *SummaryHandler {
	return &SummaryHandler{uc: uc, prices: prices, baseCtx: baseCtx}
}

// Trigger は集計をバックグラウンドで開始し 202 を返します。実行中の場合は 409 です。
//
// POST /admin/daily-summaries
func (h *SummaryHandler) Trigger(c *gin.Context) {
	run, ok := h.uc.TryStart()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "daily summary run already in progress"})
		return
	}

	go func() {
		if _, err := run(h.baseCtx); err != nil {
			logging.Warn().Err(err).Msg("manual daily summary run failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// Status は現在の状態と直近の結果を返します。
//
// GET /admin/daily-summaries/status
func (h *SummaryHandler) Status(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.uc.Status())
}

type closePriceResponse struct {
	Symbol string          `json:"symbol"`
	Close  decimal.Decimal `json:"close"`
}

// LastClose は銘柄の直近の終値を返します。
//
// GET /admin/summaries/:symbol/last-close
func (h *SummaryHandler) LastClose(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))

	price, err := h.prices.GetLastClosePriceForSymbol(c.Request.Context(), symbol)
	if err != nil {
		platformhandler.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, closePriceResponse{Symbol: symbol, Close: price})
}
