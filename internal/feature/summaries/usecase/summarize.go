package usecase

import (
	"time"

	"stockwatcher/internal/feature/stocks/domain/entity"
)

// Summarize は1銘柄・1取引日の取引列をOHLCVに集約します。
// 始値は最初の行、終値は最後の行の価格です。出来高が0の場合は false を返します。
func Summarize(symbol string, date time.Time, trades []entity.Trade) (entity.DailySummary, bool) {
	if len(trades) == 0 {
		return entity.DailySummary{}, false
	}

	s := entity.DailySummary{
		Symbol:    symbol,
		TradeDate: entity.TradeDate(date),
		Open:      trades[0].SharePrice,
		High:      trades[0].SharePrice,
		Low:       trades[0].SharePrice,
		Close:     trades[len(trades)-1].SharePrice,
	}
	for _, t := range trades {
		if t.SharePrice.GreaterThan(s.High) {
			s.High = t.SharePrice
		}
		if t.SharePrice.LessThan(s.Low) {
			s.Low = t.SharePrice
		}
		s.Volume += t.ShareQuantity
	}

	if s.Volume == 0 {
		return entity.DailySummary{}, false
	}
	return s, true
}
