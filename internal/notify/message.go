package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// Message is an alert rendered for delivery.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

var alertTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
}).Parse(`<h2>Significant Change Detected</h2>
<p>A significant change has been detected in your Area of Interest: <b>{{.AOILabel}}</b>.</p>
<p>Combined change: <b>{{pct .CombinedChange}}</b> (threshold {{pct .ThresholdPercent}})</p>
<ul>
{{- range .Changes}}
<li><b>{{.Method.Label}}:</b> {{pct .Percentage}}</li>
{{- end}}
</ul>
<p>Detected at {{.DetectedAt.UTC.Format "2006-01-02 15:04 MST"}}.</p>
`))

func Render(a model.Alert) (Message, error) {
	var html bytes.Buffer
	if err := alertTemplate.Execute(&html, a); err != nil {
		return Message{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Significant change detected in %s\n", a.AOILabel)
	fmt.Fprintf(&text, "Combined change: %.2f%% (threshold %.2f%%)\n", a.CombinedChange, a.ThresholdPercent)
	for _, c := range a.Changes {
		fmt.Fprintf(&text, "%s: %.2f%%\n", c.Method.Label(), c.Percentage)
	}

	return Message{
		Subject: "Significant Change Alert for AOI: " + a.AOILabel,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
