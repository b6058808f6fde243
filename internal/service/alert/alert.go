// Package alert decides whether a combined change warrants a notification
// and composes the message payload.
package alert

import (
	"time"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// DefaultLabel names ad-hoc submissions in alert messages.
const DefaultLabel = "User-defined AOI"

// Exceeds reports whether combined (a percentage) is strictly above the
// threshold fraction expressed as a percentage.
func Exceeds(combined float64, threshold model.Fraction) bool {
	return combined > threshold.Percent()
}

// Triggered applies Exceeds to an aggregate. An aggregate without any
// contributing method never triggers.
func Triggered(c model.Combined, threshold model.Fraction) bool {
	return c.Contributing > 0 && Exceeds(c.Percentage, threshold)
}

func Compose(label string, c model.Combined, threshold model.Fraction, at time.Time) model.Alert {
	if label == "" {
		label = DefaultLabel
	}
	changes := make([]model.MethodChange, len(c.Changes))
	copy(changes, c.Changes)
	return model.Alert{
		AOILabel:         label,
		CombinedChange:   c.Percentage,
		Changes:          changes,
		ThresholdPercent: threshold.Percent(),
		DetectedAt:       at,
	}
}
