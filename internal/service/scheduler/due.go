package scheduler

import (
	"log/slog"
	"time"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// Due reports whether a task needs a check at now: it was never checked,
// or its interval has fully elapsed since the last checked date.
func Due(task model.MonitoringTask, now time.Time) bool {
	if task.LastCheckedDate == nil {
		return true
	}
	last, err := time.ParseInLocation(model.DateLayout, *task.LastCheckedDate, now.Location())
	if err != nil {
		slog.Warn("unreadable last checked date, treating task as due",
			"aoi_id", task.AOIID, "value", *task.LastCheckedDate)
		return true
	}
	return now.After(last.AddDate(0, 0, task.MonitoringIntervalDays))
}

// Window returns the start and end dates of the next check. The window
// starts at the last checked date, or initialLookback days ago.
func Window(task model.MonitoringTask, now time.Time) (start, end string) {
	end = now.Format(model.DateLayout)
	if task.LastCheckedDate != nil && *task.LastCheckedDate != "" {
		return *task.LastCheckedDate, end
	}
	return now.AddDate(0, 0, -initialLookback).Format(model.DateLayout), end
}
