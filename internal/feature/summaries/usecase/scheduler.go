package usecase

import (
	"context"
	"sync"
	"time"

	"stockwatcher/internal/platform/cache"
	"stockwatcher/internal/platform/logging"
)

// Runner は1回分の集計を実行します。
type Runner interface {
	GenerateDailySummaries(ctx context.Context) (Report, error)
}

// Scheduler は毎日 loc の hour 時に Runner を起動します。
// 実行の失敗はログに記録し、翌日の実行を続けます。
type Scheduler struct {
	runner Runner
	hour   int
	loc    *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler は新しい Scheduler を作成します。loc が nil の場合は UTC です。
func NewScheduler(runner Runner, hour int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner: runner,
		hour:   hour,
		loc:    loc,
		now:    time.Now,
		after:  time.After,
	}
}

// Start はバックグラウンドでスケジュールを開始します。二重に呼んだ場合は何もしません。
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	logging.Info().Int("hour", s.hour).Str("timezone", s.loc.String()).Msg("daily summary scheduler started")
	go s.loop(ctx, s.done)
}

// Stop はスケジュールを止め、実行中の集計が終わるまで待ちます。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.Info().Msg("daily summary scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := cache.TimeUntilNext(s.now(), s.hour, s.loc)
		logging.Debug().Dur("wait", wait).Msg("next daily summary run scheduled")

		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
		}

		if _, err := s.runner.GenerateDailySummaries(ctx); err != nil {
			// Aggregator がエラー内容を記録済み
			logging.Warn().Err(err).Msg("scheduled daily summary run failed")
		}
	}
}
