package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DetectionMethod identifies one independent change-detection engine.
type DetectionMethod string

const (
	MethodVegetation DetectionMethod = "vegetation"
	MethodStructural DetectionMethod = "structural"
	MethodCVA        DetectionMethod = "cva"
)

// DetectionMethods lists every supported method in response slot order.
var DetectionMethods = [...]DetectionMethod{MethodVegetation, MethodStructural, MethodCVA}

// DefaultMonitoringMethods are replayed for monitoring tasks that did not pick any.
var DefaultMonitoringMethods = []DetectionMethod{MethodVegetation, MethodStructural}

func (m DetectionMethod) Valid() bool {
	switch m {
	case MethodVegetation, MethodStructural, MethodCVA:
		return true
	}
	return false
}

// Label is the human-readable name used in alert messages.
func (m DetectionMethod) Label() string {
	switch m {
	case MethodVegetation:
		return "Vegetation & Land Cover Change"
	case MethodStructural:
		return "Structural & Ground-Level Change"
	case MethodCVA:
		return "Spectral Change (CVA)"
	}
	return string(m)
}

// Fraction is a threshold in [0,1]. It decodes from a JSON number or a
// numeric string, since form-driven clients send both.
type Fraction float64

func (f *Fraction) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("threshold %s is not a number", s)
		}
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("threshold %s is not a number", string(b))
	}
	*f = Fraction(v)
	return nil
}

// Percent converts the fraction to a percentage. The result is rounded to
// nine decimals so that 0.29 compares equal to a combined change of 29.
func (f Fraction) Percent() float64 {
	return math.Round(float64(f)*1e11) / 1e9
}

func (f Fraction) String() string {
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

// Submission is a one-shot analysis request for an area of interest.
type Submission struct {
	Geometry  json.RawMessage
	StartDate string
	EndDate   string
	Threshold Fraction
	Methods   []DetectionMethod
	Recipient string
	// Label names the AOI in alert messages.
	Label string
}

func (s Submission) Requested(m DetectionMethod) bool {
	for _, r := range s.Methods {
		if r == m {
			return true
		}
	}
	return false
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// MethodResult is the outcome of one detection worker invocation.
type MethodResult struct {
	Method           DetectionMethod
	Status           ResultStatus
	PercentageChange float64
	// Summary is the method-specific payload passed through to the caller.
	// It is nil when the worker finished without a usable change summary.
	Summary map[string]any
	Error   string
}

// Contributes reports whether the result takes part in the combined score.
func (r *MethodResult) Contributes() bool {
	return r != nil && r.Status == ResultSuccess && r.Summary != nil
}

// MethodOutcome is one fixed slot of a submission: the method, whether the
// caller asked for it, and its result if it was evaluated.
type MethodOutcome struct {
	Method    DetectionMethod
	Requested bool
	Result    *MethodResult
}

type MethodChange struct {
	Method     DetectionMethod `json:"method"`
	Percentage float64         `json:"percentage"`
}

// Combined is the cross-method aggregate of a submission.
type Combined struct {
	Percentage   float64
	Contributing int
	Changes      []MethodChange
	Summaries    map[DetectionMethod]map[string]any
}

// SubmitResponse is the payload returned for a one-shot submission.
type SubmitResponse struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	NDVISummary    map[string]any `json:"ndvi_summary"`
	UNetSummary    map[string]any `json:"unet_summary"`
	CVASummary     map[string]any `json:"cva_summary"`
	CombinedChange float64        `json:"combined_change"`
	AlertTriggered bool           `json:"alert_triggered"`
}

// Alert is the notification payload composed when a submission exceeds
// its threshold.
type Alert struct {
	AOILabel         string
	CombinedChange   float64
	Changes          []MethodChange
	ThresholdPercent float64
	DetectedAt       time.Time
}
