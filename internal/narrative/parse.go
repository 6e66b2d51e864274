package narrative

import (
	"encoding/json"
	"regexp"
	"strings"

	"axial/internal/core"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseBiasAnalysis extracts the framing object from a model response.
// It reports false and returns the pending placeholder when the response
// holds no usable object; missing facets are filled with the placeholder text.
func ParseBiasAnalysis(raw string) (core.BiasAnalysis, bool) {
	pending := core.PendingBiasAnalysis()

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return pending, false
	}

	var parsed core.BiasAnalysis
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return pending, false
	}

	fields := []struct {
		value    *string
		fallback string
	}{
		{&parsed.LeftEmphasizes, pending.LeftEmphasizes},
		{&parsed.RightEmphasizes, pending.RightEmphasizes},
		{&parsed.ConsistentAcrossAll, pending.ConsistentAcrossAll},
		{&parsed.WhatsMissing, pending.WhatsMissing},
	}
	empty := 0
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			*f.value = f.fallback
			empty++
		}
	}
	if empty == len(fields) {
		return pending, false
	}
	return parsed, true
}
