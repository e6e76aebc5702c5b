// Package usecase implements the daily summary job.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockwatcher/internal/feature/stocks/domain/entity"
	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// DefaultBatchSize は同時に発行する取引読み出しの上限です。
const DefaultBatchSize = 250

// PropertyReader は集計対象日を読み出します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type PropertyReader interface {
	Timestamp(ctx context.Context, name string, opts ...store.Option) (time.Time, error)
}

// SymbolSource は集計対象の有効銘柄を列挙します。
type SymbolSource interface {
	ListActiveSymbols(ctx context.Context, opts ...store.Option) ([]string, error)
}

// TradeSource は銘柄・取引日ごとの取引を非同期に読み出します。
type TradeSource interface {
	TradesBySymbolAndDateAsync(ctx context.Context, symbol string, date time.Time, opts ...store.Option) *store.Future[[]entity.Trade]
}

// SummaryWriter は日次サマリーを非同期に書き込みます。
type SummaryWriter interface {
	UpsertDailySummaryAsync(ctx context.Context, s entity.DailySummary, opts ...store.Option) *store.Future[struct{}]
}

// CacheInvalidator は書き込んだ銘柄のキャッシュを破棄します。任意です。
type CacheInvalidator interface {
	Invalidate(ctx context.Context, symbols ...string)
}

// State は集計ジョブの状態です。
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Report は1回の実行結果です。
type Report struct {
	TradeDate time.Time `json:"trade_date"`
	Symbols   int       `json:"symbols"`
	Summaries int       `json:"summaries"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status は現在の状態と直近の実行結果です。
type Status struct {
	State         State     `json:"state"`
	LastOutcome   State     `json:"last_outcome"`
	LastExecution time.Time `json:"last_execution"`
	LastReport    Report    `json:"last_report"`
	LastError     string    `json:"last_error,omitempty"`
}

type pendingTrades struct {
	symbol string
	future *store.Future[[]entity.Trade]
}

type pendingWrite struct {
	symbol string
	future *store.Future[struct{}]
}

// Aggregator は全有効銘柄の取引を日次サマリーに集約します。
// 取引の読み出しは batchSize 件ずつ発行して解決し、書き込みは最後にまとめて確認します。
// GenerateDailySummaries は同時実行の排他を行いません。TryStart は実行中でない場合に限り実行を予約します。
type Aggregator struct {
	props        PropertyReader
	dateProperty string
	symbols      SymbolSource
	trades       TradeSource
	writer       SummaryWriter
	cache        CacheInvalidator
	batchSize    int
	opts         []store.Option
	now          func() time.Time

	mu            sync.Mutex
	running       int
	state         State
	lastOutcome   State
	lastExecution time.Time
	lastReport    Report
	lastErr       error
}

// NewAggregator は新しい Aggregator を作成します。dateProperty は集計対象の取引日を保持するプロパティ名です。
// batchSize が0以下の場合は DefaultBatchSize を使用します。opts はすべての読み書きに適用されます。
func NewAggregator(props PropertyReader, dateProperty string, symbols SymbolSource, trades TradeSource, writer SummaryWriter, batchSize int, opts ...store.Option) *Aggregator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Aggregator{
		props:        props,
		dateProperty: dateProperty,
		symbols:      symbols,
		trades:       trades,
		writer:       writer,
		batchSize:    batchSize,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
		state:        StateIdle,
		lastOutcome:  StateIdle,
	}
}

// WithCacheInvalidator は書き込み完了後に呼ばれるキャッシュ破棄先を設定します。
func (a *Aggregator) WithCacheInvalidator(c CacheInvalidator) *Aggregator {
	a.cache = c
	return a
}

// GenerateDailySummaries は設定された取引日の日次サマリーを生成します。
// いずれかの読み出し・書き込みが失敗した時点で中断します。確認済みのサマリーは残りますが、
// 同じ取引日で再実行しても同じ結果になります。
func (a *Aggregator) GenerateDailySummaries(ctx context.Context) (Report, error) {
	a.mu.Lock()
	a.begin()
	a.mu.Unlock()
	return a.generate(ctx)
}

// TryStart は実行中でなければ実行を予約し、その実行を行う関数を返します。
// 予約と状態の更新は同じロックの下で行うので、同時に呼んでも成功するのは1つだけです。
// 返された関数は1度だけ呼び出してください。
func (a *Aggregator) TryStart() (func(ctx context.Context) (Report, error), bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running > 0 {
		return nil, false
	}
	a.begin()
	return a.generate, true
}

// begin は a.mu を保持して呼び出します。
func (a *Aggregator) begin() {
	a.running++
	a.state = StateRunning
}

func (a *Aggregator) generate(ctx context.Context) (Report, error) {
	report := Report{Started: a.now()}
	report, err := a.run(ctx, report)
	report.Finished = a.now()
	a.finish(report, err)
	return report, err
}

func (a *Aggregator) run(ctx context.Context, report Report) (Report, error) {
	// 中断時に発行済みの問い合わせを打ち切る
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	date, err := a.props.Timestamp(ctx, a.dateProperty, a.opts...)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", a.dateProperty, err)
	}
	day := entity.TradeDate(date)
	report.TradeDate = day

	logging.Info().Time("trade_date", day).Int("batch_size", a.batchSize).Msg("daily summary run started")

	symbols, err := a.symbols.ListActiveSymbols(ctx, a.opts...)
	if err != nil {
		return report, fmt.Errorf("list active symbols: %w", err)
	}
	report.Symbols = len(symbols)

	inFlight := make([]pendingTrades, 0, a.batchSize)
	var writes []pendingWrite

	flush := func() error {
		for _, p := range inFlight {
			trades, err := p.future.Get(ctx)
			if err != nil {
				return fmt.Errorf("trades for %s: %w", p.symbol, err)
			}
			s, ok := Summarize(p.symbol, day, trades)
			if !ok {
				continue
			}
			writes = append(writes, pendingWrite{
				symbol: p.symbol,
				future: a.writer.UpsertDailySummaryAsync(ctx, s, a.opts...),
			})
		}
		inFlight = inFlight[:0]
		return nil
	}

	for _, symbol := range symbols {
		inFlight = append(inFlight, pendingTrades{
			symbol: symbol,
			future: a.trades.TradesBySymbolAndDateAsync(ctx, symbol, day, a.opts...),
		})
		if len(inFlight) >= a.batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	written := make([]string, 0, len(writes))
	for _, w := range writes {
		if _, err := w.future.Get(ctx); err != nil {
			return report, fmt.Errorf("write summary for %s: %w", w.symbol, err)
		}
		written = append(written, w.symbol)
	}
	report.Summaries = len(written)
	summariesWritten.Add(float64(len(written)))

	if a.cache != nil && len(written) > 0 {
		a.cache.Invalidate(ctx, written...)
	}
	return report, nil
}

// finish は結果を記録し、他に実行中のものがなければ Idle に戻ります。
func (a *Aggregator) finish(report Report, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastReport = report
	a.lastErr = err
	if err != nil {
		a.lastOutcome = StateFailed
		runsTotal.WithLabelValues("failed").Inc()
		logging.Error().Err(err).Time("trade_date", report.TradeDate).Msg("daily summary run failed")
	} else {
		a.lastOutcome = StateSucceeded
		a.lastExecution = report.Finished
		runsTotal.WithLabelValues("succeeded").Inc()
		lastSuccess.Set(float64(report.Finished.Unix()))
		logging.Info().
			Time("trade_date", report.TradeDate).
			Int("symbols", report.Symbols).
			Int("summaries", report.Summaries).
			Dur("elapsed", report.Finished.Sub(report.Started)).
			Msg("daily summary run finished")
	}
	a.running--
	if a.running == 0 {
		a.state = StateIdle
	}
}

// LastExecution は直近の成功した実行の完了時刻です。未実行の場合はゼロ値です。
func (a *Aggregator) LastExecution() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastExecution
}

// State は現在の状態です。
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Status は状態と直近の実行結果をまとめて返します。
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		State:         a.state,
		LastOutcome:   a.lastOutcome,
		LastExecution: a.lastExecution,
		LastReport:    a.lastReport,
	}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	return st
}
