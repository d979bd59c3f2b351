package annotator

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/pkg/errors"
)

// maxPromptTerms caps how many term texts are spelled out in a prompt;
// larger clusters are sampled from the front, which is enough signal for a
// title and keeps token usage bounded.
const maxPromptTerms = 40

const annotatePromptText = `You are a market analyst for e-commerce search data.
A cluster of related search terms was detected:

Terms ({{.TermCount}} total{{if .Truncated}}, first {{.ShownCount}} shown{{end}}):
{{range .Terms}}- {{.}}
{{end}}
Aggregate metrics: total search volume {{printf "%.0f" .Metrics.TotalVolume}}, average growth {{printf "%.2f" .Metrics.AvgGrowth}}, average competition {{printf "%.1f" .Metrics.AvgCompetition}}.
{{if .Tags}}Known attribute tags:
{{range .Tags}}- {{.Category}}: {{.Value}}
{{end}}{{end}}
Respond with a single JSON object, no prose:
{"title": "<concise cluster name, max 6 words>", "summary": "<1-2 sentence market description>", "tags": [{"category": "<category>", "value": "<value>"}], "confidence": <0.0-1.0>}`

const describePromptText = `You are a market analyst for e-commerce search data.
Within a cluster of search terms, a group shares the attribute {{.Key}} = {{.Value}}:

{{range .Terms}}- {{.}}
{{end}}
Respond with a single JSON object, no prose:
{"description": "<one sentence describing the pattern this group represents>", "confidence": <0.0-1.0>}`

var (
	annotateTemplate = template.Must(template.New("annotate").Parse(annotatePromptText))
	describeTemplate = template.Must(template.New("describe").Parse(describePromptText))
)

type annotatePromptData struct {
	Terms      []string
	TermCount  int
	ShownCount int
	Truncated  bool
	Metrics    cluster.Metrics
	Tags       []cluster.Tag
}

// buildAnnotatePrompt renders the cluster annotation prompt.
func buildAnnotatePrompt(terms []string, metrics cluster.Metrics, tags []cluster.Tag) (string, error) {
	shown := terms
	truncated := false
	if len(shown) > maxPromptTerms {
		shown = shown[:maxPromptTerms]
		truncated = true
	}
	var buf bytes.Buffer
	err := annotateTemplate.Execute(&buf, annotatePromptData{
		Terms:      shown,
		TermCount:  len(terms),
		ShownCount: len(shown),
		Truncated:  truncated,
		Metrics:    metrics,
		Tags:       tags,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "render annotation prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}

// buildDescribePrompt renders the attribute-group description prompt.
func buildDescribePrompt(group cluster.AttributeGroup) (string, error) {
	var buf bytes.Buffer
	if err := describeTemplate.Execute(&buf, group); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "render pattern prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}
