// Package scoring rates article text on two editorial axes: heat (sensational
// framing) and substance (factual, data-backed content).
package scoring

import (
	"math"
	"regexp"
)

// maxMatchesPerSignal caps how often a single signal can contribute.
const maxMatchesPerSignal = 3

// Signal is a lexical marker and the weight each match contributes.
type Signal struct {
	Pattern *regexp.Regexp
	Weight  float64
}

// Label is the qualitative reading of a heat/substance pair.
type Label string

const (
	LabelReadSkeptically Label = "High heat, low substance. Read skeptically."
	LabelHeatAndFacts    Label = "High heat, high substance."
	LabelQuality         Label = "Low heat, high substance. Quality reporting."
	LabelNeutral         Label = "Neutral coverage."
	LabelBalanced        Label = "Balanced coverage."
)

// Result is the outcome of scoring one text.
type Result struct {
	Heat      float64 `json:"heat"`      // [0,1], two decimals
	Substance float64 `json:"substance"` // [0,1], two decimals
	Label     Label   `json:"label"`
}

var heatSignals = []Signal{
	{regexp.MustCompile(`(?i)unprecedented`), 0.15},
	{regexp.MustCompile(`(?i)shocking`), 0.2},
	{regexp.MustCompile(`(?i)breaking`), 0.1},
	{regexp.MustCompile(`(?i)bombshell`), 0.25},
	{regexp.MustCompile(`(?i)slammed`), 0.15},
	{regexp.MustCompile(`(?i)outrage`), 0.2},
	{regexp.MustCompile(`(?i)crisis`), 0.15},
	{regexp.MustCompile(`(?i)you won't believe`), 0.25},
	{regexp.MustCompile(`(?i)everyone is saying`), 0.2},
	{regexp.MustCompile(`(?i)could be catastrophic`), 0.2},
	{regexp.MustCompile(`!{2,}`), 0.1},
	{regexp.MustCompile(`\b[A-Z]{4,}\b`), 0.05},
	{regexp.MustCompile(`(?i)devastating`), 0.15},
	{regexp.MustCompile(`(?i)explosive`), 0.2},
	{regexp.MustCompile(`(?i)terrifying`), 0.2},
	{regexp.MustCompile(`(?i)unbelievable`), 0.15},
	{regexp.MustCompile(`(?i)fury`), 0.15},
	{regexp.MustCompile(`(?i)chaos`), 0.15},
	{regexp.MustCompile(`(?i)panic`), 0.15},
	{regexp.MustCompile(`(?i)alarming`), 0.12},
	{regexp.MustCompile(`(?i)urgent`), 0.1},
	{regexp.MustCompile(`(?i)extreme`), 0.1},
}

var substanceSignals = []Signal{
	{regexp.MustCompile(`\$[\d,]+`), 0.2},
	{regexp.MustCompile(`\d+%`), 0.2},
	{regexp.MustCompile(`\d{1,3}(,\d{3})+`), 0.15},
	{regexp.MustCompile(`"[^"]{10,}"`), 0.2},
	{regexp.MustCompile(`(?i)according to`), 0.15},
	{regexp.MustCompile(`(?i)study|research|report`), 0.15},
	{regexp.MustCompile(`(?i)data shows`), 0.15},
	{regexp.MustCompile(`(?i)percent`), 0.1},
	{regexp.MustCompile(`(?i)billion|million|trillion`), 0.15},
	{regexp.MustCompile(`(?i)officials? said`), 0.1},
	{regexp.MustCompile(`(?i)announced`), 0.08},
	{regexp.MustCompile(`(?i)legislation|bill|law`), 0.1},
	{regexp.MustCompile(`(?i)voted?\s+\d+`), 0.15},
	{regexp.MustCompile(`(?i)per\s+capita`), 0.12},
	{regexp.MustCompile(`(?i)year-over-year|YoY`), 0.12},
}

// Score rates text against both signal tables. It is pure and deterministic.
func Score(text string) Result {
	heat := scoreSignals(text, heatSignals)
	substance := scoreSignals(text, substanceSignals)

	return Result{
		Heat:      round2(heat),
		Substance: round2(substance),
		Label:     labelFor(heat, substance),
	}
}

// scoreSignals sums weight * min(matches, 3) in table order and clamps to 1.
func scoreSignals(text string, signals []Signal) float64 {
	score := 0.0
	for _, s := range signals {
		matches := len(s.Pattern.FindAllStringIndex(text, maxMatchesPerSignal))
		if matches > 0 {
			score += s.Weight * float64(matches)
		}
	}
	return math.Min(score, 1)
}

// labelFor classifies the unrounded scores.
func labelFor(heat, substance float64) Label {
	switch {
	case heat > 0.5 && substance < 0.3:
		return LabelReadSkeptically
	case heat > 0.5 && substance > 0.5:
		return LabelHeatAndFacts
	case heat < 0.3 && substance > 0.5:
		return LabelQuality
	case heat < 0.3 && substance < 0.3:
		return LabelNeutral
	default:
		return LabelBalanced
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
