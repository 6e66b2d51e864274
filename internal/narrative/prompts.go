package narrative

import (
	"fmt"
	"strings"

	"axial/internal/core"

	"google.golang.org/genai"
)

const (
	maxSummaryArticles   = 10
	summarySnippetLength = 200
	biasSnippetLength    = 150
	maxBiasTexts         = 3
	maxDigestStories     = 10

	summarySystemPrompt = "You are a concise news summarizer. Output only the summary, nothing else."
	biasSystemPrompt    = "You output only valid JSON. No markdown. No explanation."
	digestSystemPrompt  = "You are a news digest writer. Write naturally, concisely. Include key numbers and facts."
)

func buildSummaryPrompt(members []core.ClusterMember) string {
	if len(members) > maxSummaryArticles {
		members = members[:maxSummaryArticles]
	}

	lines := make([]string, 0, len(members))
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("- %s: %s", m.Title, truncateRunes(m.Description, summarySnippetLength)))
	}

	return fmt.Sprintf(`Summarize these related news articles into 2-3 sentences (max 60 words). Be factual and concise. No opinions.

Articles:
%s

Summary:`, strings.Join(lines, "\n"))
}

// BiasText renders one member the way framing prompts quote coverage
func BiasText(m core.ClusterMember) string {
	return fmt.Sprintf("%s: %s", m.Title, truncateRunes(m.Description, biasSnippetLength))
}

// PartitionByBias splits members into left, center and right coverage texts.
// International and unlabeled sources are left out.
func PartitionByBias(members []core.ClusterMember) (left, center, right []string) {
	for _, m := range members {
		switch m.BiasLabel.Bucket() {
		case core.BucketLeft:
			left = append(left, BiasText(m))
		case core.BucketCenter:
			center = append(center, BiasText(m))
		case core.BucketRight:
			right = append(right, BiasText(m))
		}
	}
	return left, center, right
}

func buildBiasPrompt(topic string, left, center, right []string) string {
	return fmt.Sprintf(`Analyze media framing for this news story: "%s"

Left-leaning coverage:
%s

Center coverage:
%s

Right-leaning coverage:
%s

Respond ONLY with valid JSON (no markdown, no explanation):
{"leftEmphasizes":"1 sentence","rightEmphasizes":"1 sentence","consistentAcrossAll":"1 sentence","whatsMissing":"1 sentence"}`,
		topic, coverage(left), coverage(center), coverage(right))
}

func coverage(texts []string) string {
	if len(texts) > maxBiasTexts {
		texts = texts[:maxBiasTexts]
	}
	if len(texts) == 0 {
		return "No coverage"
	}
	return strings.Join(texts, "\n")
}

func buildDigestPrompt(stories []core.DigestStory) string {
	if len(stories) > maxDigestStories {
		stories = stories[:maxDigestStories]
	}

	lines := make([]string, 0, len(stories))
	for _, st := range stories {
		detail := st.Summary
		if detail == "" {
			detail = st.Topic
		}
		lines = append(lines, fmt.Sprintf("- %s (%d sources): %s", st.Topic, st.ArticleCount, detail))
	}

	return fmt.Sprintf(`Write a 150-word daily news digest from these top stories. Conversational but factual. Start with "Good morning." End with a brief closing line.

Today's top stories:
%s

Digest:`, strings.Join(lines, "\n"))
}

func biasAnalysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"leftEmphasizes": {
				Type:        genai.TypeString,
				Description: "What left-leaning coverage emphasizes, in one sentence",
			},
			"rightEmphasizes": {
				Type:        genai.TypeString,
				Description: "What right-leaning coverage emphasizes, in one sentence",
			},
			"consistentAcrossAll": {
				Type:        genai.TypeString,
				Description: "Facts reported consistently by all outlets, in one sentence",
			},
			"whatsMissing": {
				Type:        genai.TypeString,
				Description: "Context absent from most coverage, in one sentence",
			},
		},
		Required: []string{"leftEmphasizes", "rightEmphasizes", "consistentAcrossAll", "whatsMissing"},
	}
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
