package annotator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/cluster"
)

func TestBuildAnnotatePrompt(t *testing.T) {
	prompt, err := buildAnnotatePrompt(
		[]string{"wireless mouse", "wireless keyboard"},
		cluster.Metrics{TotalVolume: 1800, AvgGrowth: 0.15, AvgCompetition: 35},
		[]cluster.Tag{{Category: "function", Value: "input device"}},
	)
	require.NoError(t, err)

	assert.Contains(t, prompt, "- wireless mouse")
	assert.Contains(t, prompt, "- wireless keyboard")
	assert.Contains(t, prompt, "total search volume 1800")
	assert.Contains(t, prompt, "average growth 0.15")
	assert.Contains(t, prompt, "function: input device")
	assert.Contains(t, prompt, `"title"`)
	assert.NotContains(t, prompt, "first")
}

func TestBuildAnnotatePromptTruncatesLargeClusters(t *testing.T) {
	terms := make([]string, 100)
	for i := range terms {
		terms[i] = fmt.Sprintf("term-%03d", i)
	}
	prompt, err := buildAnnotatePrompt(terms, cluster.Metrics{}, nil)
	require.NoError(t, err)

	assert.Contains(t, prompt, "100 total, first 40 shown")
	assert.Contains(t, prompt, "term-039")
	assert.NotContains(t, prompt, "term-040")
	assert.Equal(t, maxPromptTerms, strings.Count(prompt, "- term-"))
}

func TestBuildDescribePrompt(t *testing.T) {
	prompt, err := buildDescribePrompt(cluster.AttributeGroup{
		Key:   "format",
		Value: "powder",
		Terms: []string{"collagen powder", "protein powder"},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "format = powder")
	assert.Contains(t, prompt, "- collagen powder")
	assert.Contains(t, prompt, "- protein powder")
	assert.Contains(t, prompt, `"description"`)
}
