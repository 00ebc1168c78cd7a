package models

import (
	"fmt"
	"strings"
)

// TimeRange is the trending page window
type TimeRange string

const (
	TimeRangeDaily   TimeRange = "daily"
	TimeRangeWeekly  TimeRange = "weekly"
	TimeRangeMonthly TimeRange = "monthly"
)

func ParseTimeRange(value string) (TimeRange, error) {
	switch TimeRange(strings.ToLower(strings.TrimSpace(value))) {
	case "", TimeRangeDaily:
		return TimeRangeDaily, nil
	case TimeRangeWeekly:
		return TimeRangeWeekly, nil
	case TimeRangeMonthly:
		return TimeRangeMonthly, nil
	default:
		return "", &ValidationError{Field: "time_range", Message: fmt.Sprintf("Unknown time range %q", value)}
	}
}
