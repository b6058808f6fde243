package model

import "time"

type SchedulerStatus struct {
	IsRunning           bool       `json:"is_running"`
	LastRunAt           *time.Time `json:"last_run_at"`
	TasksInLastCycle    int        `json:"tasks_in_last_cycle"`
	CheckedInLastCycle  int        `json:"checked_in_last_cycle"`
	AlertsInLastCycle   int        `json:"alerts_in_last_cycle"`
	FailuresInLastCycle int        `json:"failures_in_last_cycle"`
	LastError           string     `json:"last_error,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
