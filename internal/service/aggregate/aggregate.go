// Package aggregate folds per-method detection results into one score.
package aggregate

import "github.com/rajkrsingh9/Gagan-Dhristi/internal/model"

// Combine averages the percentage change of every outcome that was both
// requested and successful. Summaries keep a key for every requested
// method, nil when the method did not succeed.
func Combine(outcomes []model.MethodOutcome) model.Combined {
	c := model.Combined{
		Summaries: make(map[model.DetectionMethod]map[string]any, len(outcomes)),
	}

	var sum float64
	for _, o := range outcomes {
		if !o.Requested {
			continue
		}
		if !o.Result.Contributes() {
			c.Summaries[o.Method] = nil
			continue
		}
		c.Summaries[o.Method] = o.Result.Summary
		c.Changes = append(c.Changes, model.MethodChange{
			Method:     o.Method,
			Percentage: o.Result.PercentageChange,
		})
		sum += o.Result.PercentageChange
		c.Contributing++
	}

	if c.Contributing > 0 {
		c.Percentage = sum / float64(c.Contributing)
	}
	return c
}
