package common

const (
	RedisKeyDailyClosePrefix = "marketdata.close"

	HeaderUserID = "X-User-ID"
)
