package domain

const (
	// DefaultTopLimit 排行榜未指定數量時的預設值
	DefaultTopLimit = 10
	// MaxTopLimit 排行榜數量上限，超過直接截斷 (不視為錯誤)
	MaxTopLimit = 20
)

// NormalizeLimit 排行榜數量正規化: n <= 0 用預設值，超過上限截斷
func NormalizeLimit(n, defaultLimit, maxLimit int) int {
	if defaultLimit <= 0 {
		defaultLimit = DefaultTopLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxTopLimit
	}
	if n <= 0 {
		n = defaultLimit
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n
}
