// Package kafka carries scheduler wake-up signals between the API and a
// separately deployed scheduler.
package kafka

import "time"

const EventTasksChanged = "tasks_changed"

// Event tells the scheduler that the monitoring task set changed.
type Event struct {
	Type  string    `json:"type"`
	AOIID string    `json:"aoi_id"`
	At    time.Time `json:"at"`
}
