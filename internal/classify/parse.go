package classify

import (
	"encoding/json"
	"strings"
)

// Classification is the normalized output of the description model.
type Classification struct {
	Species     string  `json:"species"`
	Venomous    bool    `json:"venomous"`
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// Fallback classification constants. When the model output cannot be
// parsed the adapter assumes the worst rather than aborting: an unknown
// snake is treated as venomous and high risk.
const (
	fallbackSpecies    = "Unknown Snake"
	fallbackRiskLevel  = "high"
	fallbackConfidence = 0.3
	defaultConfidence  = 0.5
)

// FallbackClassification returns the conservative fail-safe-high result
// used whenever the model response is unusable.
func FallbackClassification() Classification {
	return Classification{
		Species:    fallbackSpecies,
		Venomous:   true,
		RiskLevel:  fallbackRiskLevel,
		Confidence: fallbackConfidence,
	}
}

// ParseResponse turns raw model text into a validated Classification.
// It never fails: unusable input degrades to the fallback, and the
// second return value reports whether parsing succeeded.
func ParseResponse(raw string) (Classification, bool) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return FallbackClassification(), false
	}

	var c Classification
	if err := json.Unmarshal([]byte(jsonText), &c); err != nil {
		return FallbackClassification(), false
	}
	if strings.TrimSpace(c.Species) == "" {
		return FallbackClassification(), false
	}

	return validate(c), true
}

// validate clamps confidence to [0,1] (zero becomes the default) and
// constrains the risk level to the enum, deriving it from venom status
// when the model produced something else.
func validate(c Classification) Classification {
	if c.Confidence <= 0 {
		c.Confidence = defaultConfidence
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	c.RiskLevel = strings.ToLower(strings.TrimSpace(c.RiskLevel))
	switch c.RiskLevel {
	case "low", "medium", "high", "critical":
	default:
		if c.Venomous {
			c.RiskLevel = "high"
		} else {
			c.RiskLevel = "low"
		}
	}
	return c
}

// extractJSONObject pulls the outermost JSON object out of model text
// by brace matching, tolerating markdown fences, leading prose and
// truncated tails. Returns "" when no opening brace exists.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}

	// Truncated object: best effort, close whatever is still open.
	candidate := raw[start:]
	if inString {
		candidate += `"`
	}
	candidate = strings.TrimRight(candidate, ", \n\t")
	candidate += strings.Repeat("}", depth)
	return candidate
}
