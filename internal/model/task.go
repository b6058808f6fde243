package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar date format shared with the worker scripts.
const DateLayout = "2006-01-02"

// MonitoringTask is a persisted recurring check of an area of interest.
// Field names match the document the processing scripts read.
type MonitoringTask struct {
	AOIID                  string            `json:"aoi_id"`
	GeoJSON                json.RawMessage   `json:"geojson"`
	MonitoringIntervalDays int               `json:"monitoring_interval_days"`
	Threshold              Fraction          `json:"threshold"`
	LastCheckedDate        *string           `json:"last_checked_date"`
	EmailRecipient         string            `json:"email_recipient"`
	DetectionMethods       []DetectionMethod `json:"detection_methods,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
}

// Methods returns the detection methods replayed for the task.
func (t MonitoringTask) Methods() []DetectionMethod {
	if len(t.DetectionMethods) == 0 {
		return DefaultMonitoringMethods
	}
	return t.DetectionMethods
}

// MonitorRequest starts a recurring check.
type MonitorRequest struct {
	Geometry     json.RawMessage
	IntervalDays int
	Threshold    Fraction
	Recipient    string
	Methods      []DetectionMethod
}
