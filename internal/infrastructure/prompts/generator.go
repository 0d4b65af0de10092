package prompts

import (
	"bytes"
	"text/template"

	"browser-pilot/internal/domain/entity"
)

const observationTemplate = `Task: {{.Task}}
Step {{.StepNumber}} ({{.StepsRemaining}} remaining)
URL: {{.URL}}
Title: {{.Title}}
{{- if .Stuck}}

YOU ARE STUCK: your recent actions repeat without progress. Choose a different element or approach.
{{- end}}
{{- if .LastError}}
Last error: {{.LastError}}
{{- end}}
{{- if .Overlay}}

Blocking overlay detected ({{.Overlay.Kind}}){{if .Overlay.Text}}: {{.Overlay.Text}}{{end}}. Dismiss it before anything else.
{{- end}}

Interactive elements:
{{- range $i, $el := .Elements}}
{{$i}}. [{{$el.Kind}}] {{if $el.Text}}"{{$el.Text}}" {{end}}selector={{$el.Selector}}{{if $el.Href}} href={{$el.Href}}{{end}}{{if $el.IsConsentButton}} (consent){{end}}
{{- end}}
{{- if .RecentHistory}}

Recent actions:
{{- range .RecentHistory}}
- step {{.Step}}: {{.Action}}{{if .Selector}} {{.Selector}}{{end}} -> {{if .Success}}ok{{else}}failed{{end}}
{{- end}}
{{- end}}
{{- if .PageText}}

Page text excerpt:
{{.PageText}}
{{- end}}`

var observationTmpl = template.Must(template.New("observation").Parse(observationTemplate))

// RenderObservation formats an observation as the user message for the
// decision prompt.
func RenderObservation(obs entity.Observation) (string, error) {
	var buf bytes.Buffer
	if err := observationTmpl.Execute(&buf, obs); err != nil {
		return "", err
	}
	return buf.String(), nil
}
