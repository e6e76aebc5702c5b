package cache

import (
	"time"
)

// TimeUntilNext は now から見て次に loc の hour 時ちょうどになるまでの期間を返します。
// 戻り値は常に 0 より大きくなります。
func TimeUntilNext(now time.Time, hour int, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)

	// 今日の指定時刻を過ぎている場合は翌日の同時刻を使用
	if !local.Before(next) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}

	return next.Sub(now)
}
