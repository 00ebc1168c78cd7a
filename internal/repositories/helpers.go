package repositories

import (
	"strings"
	"time"
)

// dbTime normalizes timestamps before they are written or compared. The
// sqlite3 driver stores time.Time as text, so every value must share one zone
// and precision for SQL comparisons to order correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullableString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := dbTime(*t)
	return &normalized
}
