package hyperliquid

import "time"

// msToTime converts a Hyperliquid millisecond Unix timestamp to time.Time.
func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
