package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"stockwatcher/internal/feature/summaries/transport/handler"
	"stockwatcher/internal/feature/summaries/usecase"
	"stockwatcher/internal/platform/store"
)

// mockSummaryUsecase はSummaryUsecaseインターフェースのモック実装です。
type mockSummaryUsecase struct {
	TryStartFunc func() (func(ctx context.Context) (usecase.Report, error), bool)
	StatusFunc   func() usecase.Status
}

func (m *mockSummaryUsecase) TryStart() (func(ctx context.Context) (usecase.Report, error), bool) {
	return m.TryStartFunc()
}

func (m *mockSummaryUsecase) Status() usecase.Status {
	return m.StatusFunc()
}

// mockClosePriceReader はClosePriceReaderインターフェースのモック実装です。
type mockClosePriceReader struct {
	GetFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)
}

func (m *mockClosePriceReader) GetLastClosePriceForSymbol(ctx context.Context, symbol string, opts ...store.Option) (decimal.Decimal, error) {
	return m.GetFunc(ctx, symbol)
}

func newRouter(h *handler.SummaryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/daily-summaries", h.Trigger)
	r.GET("/admin/daily-summaries/status", h.Status)
	r.GET("/admin/summaries/:symbol/last-close", h.LastClose)
	return r
}

func idle() usecase.Status { return usecase.Status{State: usecase.StateIdle} }

// TestSummaryHandler_Trigger は集計の起動と実行中の拒否をテストします。
func TestSummaryHandler_Trigger(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	uc := &mockSummaryUsecase{
		StatusFunc: idle,
		TryStartFunc: func() (func(ctx context.Context) (usecase.Report, error), bool) {
			return func(ctx context.Context) (usecase.Report, error) {
				defer wg.Done()
				return usecase.Report{}, nil
			}, true
		},
	}
	r := newRouter(handler.NewSummaryHandler(context.Background(), uc, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/daily-summaries", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"started"}`, w.Body.String())

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}

	uc.TryStartFunc = func() (func(ctx context.Context) (usecase.Report, error), bool) { return nil, false }
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/daily-summaries", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

// blockingProps は release が閉じられるまで取引日の読み出しを止めます。
type blockingProps struct {
	release chan struct{}
}

func (p *blockingProps) Timestamp(ctx context.Context, name string, opts ...store.Option) (time.Time, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil
}

type noSymbols struct{}

func (noSymbols) ListActiveSymbols(ctx context.Context, opts ...store.Option) ([]string, error) {
	return nil, nil
}

// TestSummaryHandler_TriggerBackToBack は連続した起動要求のうち1つだけが受け付けられることをテストします。
func TestSummaryHandler_TriggerBackToBack(t *testing.T) {
	props := &blockingProps{release: make(chan struct{})}
	agg := usecase.NewAggregator(props, "last_trade_date", noSymbols{}, nil, nil, 0)
	r := newRouter(handler.NewSummaryHandler(context.Background(), agg, nil))

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/daily-summaries", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusConflict}, codes)
	assert.Equal(t, usecase.StateRunning, agg.State())

	close(props.release)
	assert.Eventually(t, func() bool { return agg.State() == usecase.StateIdle }, time.Second, 5*time.Millisecond)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/daily-summaries", nil))
	assert.Equal(t, http.StatusAccepted, w.Code, "accepted again once the run finished")
	assert.Eventually(t, func() bool { return agg.State() == usecase.StateIdle }, time.Second, 5*time.Millisecond)
}

// TestSummaryHandler_Status は状態がJSONで名前付きで返ることをテストします。
func TestSummaryHandler_Status(t *testing.T) {
	finished := time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC)
	uc := &mockSummaryUsecase{StatusFunc: func() usecase.Status {
		return usecase.Status{
			State:         usecase.StateIdle,
			LastOutcome:   usecase.StateFailed,
			LastExecution: finished,
			LastReport:    usecase.Report{Symbols: 3, Summaries: 2},
			LastError:     "boom",
		}
	}}
	r := newRouter(handler.NewSummaryHandler(context.Background(), uc, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/daily-summaries/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"state":"idle",
		"last_outcome":"failed",
		"last_execution":"2024-03-02T06:00:00Z",
		"last_report":{"trade_date":"0001-01-01T00:00:00Z","symbols":3,"summaries":2,"started":"0001-01-01T00:00:00Z","finished":"0001-01-01T00:00:00Z"},
		"last_error":"boom"
	}`, w.Body.String())
}

// TestSummaryHandler_LastClose は終値の取得とエラー変換をテストします。
func TestSummaryHandler_LastClose(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		getFn          func(ctx context.Context, symbol string) (decimal.Decimal, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: symbol is normalized",
			url:  "/admin/summaries/aapl/last-close",
			getFn: func(ctx context.Context, symbol string) (decimal.Decimal, error) {
				assert.Equal(t, "AAPL", symbol)
				return decimal.RequireFromString("182.31"), nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"symbol":"AAPL","close":"182.31"}`,
		},
		{
			name: "error: no summary yet",
			url:  "/admin/summaries/ZZZ/last-close",
			getFn: func(ctx context.Context, symbol string) (decimal.Decimal, error) {
				return decimal.Zero, store.Errorf("stocks.GetLastClosePriceForSymbol", store.ErrNotFound, "no summary")
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"stocks.GetLastClosePriceForSymbol: not found: no summary"}`,
		},
		{
			name: "error: store down",
			url:  "/admin/summaries/IBM/last-close",
			getFn: func(ctx context.Context, symbol string) (decimal.Decimal, error) {
				return decimal.Zero, store.Errorf("stocks.GetLastClosePriceForSymbol", store.ErrStoreUnavailable, "all nodes down")
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewSummaryHandler(context.Background(), &mockSummaryUsecase{StatusFunc: idle}, &mockClosePriceReader{GetFunc: tt.getFn})
			r := newRouter(h)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}
