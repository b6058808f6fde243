package orchestrator

import (
	"strconv"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/worker"
)

const acquisitionScript = "gee_drive_download.py"

// engine describes how one detection method is invoked and how its output
// maps to a response summary.
type engine struct {
	script        string
	withThreshold bool
	summarize     func(worker.Output) map[string]any
}

var engines = map[model.DetectionMethod]engine{
	model.MethodVegetation: {
		script:        "gee_change_detection.py",
		withThreshold: true,
		summarize:     nestedSummary,
	},
	model.MethodStructural: {
		script:    "unet_inference.py",
		summarize: flatSummary,
	},
	model.MethodCVA: {
		script:        "cva_change_detection.py",
		withThreshold: true,
		summarize:     nestedSummary,
	},
}

func nestedSummary(out worker.Output) map[string]any {
	s, _ := out["summary"].(map[string]any)
	return s
}

var flatSummaryFields = []string{
	"message",
	"percentage_change",
	"total_change_pixels",
	"change_mask_path",
	"change_overlay_png",
	"change_only_png",
}

func flatSummary(out worker.Output) map[string]any {
	if _, ok := out["percentage_change"]; !ok {
		return nil
	}
	s := make(map[string]any, len(flatSummaryFields))
	for _, k := range flatSummaryFields {
		if v, ok := out[k]; ok {
			s[k] = v
		}
	}
	return s
}

// percentage reads percentage_change as a number. Workers emit a JSON
// number; a numeric string is tolerated.
func percentage(summary map[string]any) (float64, bool) {
	switch v := summary["percentage_change"].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// toResult classifies a worker reply. A reply counts as a success only
// when it reports success and carries a numeric percentage change.
func toResult(m model.DetectionMethod, e engine, out worker.Output, err error) *model.MethodResult {
	r := &model.MethodResult{Method: m, Status: model.ResultFailure}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if out.Status() != "success" {
		r.Error = out.String("message")
		if r.Error == "" {
			r.Error = "worker reported status " + strconv.Quote(out.Status())
		}
		return r
	}
	summary := e.summarize(out)
	pct, ok := percentage(summary)
	if summary == nil || !ok {
		r.Error = "worker returned no change summary"
		if worker.IsSoftSuccess(out) {
			r.Error = out.String("message")
		}
		return r
	}
	r.Status = model.ResultSuccess
	r.PercentageChange = pct
	r.Summary = summary
	return r
}
