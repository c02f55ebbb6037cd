package domain

import "github.com/shopspring/decimal"

// amount 使用 int64 (最小貨幣單位)，並定義精度：小數點後 2 位
const (
	CurrencyDecimals int32 = 2
)

// FormatAmount 把最小單位金額轉成顯示用字串 (例: 12345 -> "123.45")
func FormatAmount(amount int64) string {
	return decimal.New(amount, -CurrencyDecimals).StringFixed(CurrencyDecimals)
}
