package scoring

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

// Regions with sustained Zika or malaria transmission. Matched as
// case-insensitive substrings of the free-text travel history.
var highRiskRegions = []string{
	"brazil",
	"colombia",
	"venezuela",
	"peru",
	"bolivia",
	"honduras",
	"haiti",
	"mexico",
	"nigeria",
	"ghana",
	"kenya",
	"uganda",
	"tanzania",
	"congo",
	"mozambique",
	"angola",
	"india",
	"bangladesh",
	"indonesia",
	"thailand",
	"vietnam",
	"cambodia",
	"philippines",
	"papua new guinea",
}

// Generic hints that the patient travelled at all, worth a smaller bump when
// no known region matches.
var travelKeywords = []string{"travel", "trip", "abroad", "overseas", "visit", "return"}

const (
	recommendationHigh     = "Immediate clinical evaluation recommended. Order Zika/malaria diagnostic panel and monitor symptoms closely."
	recommendationModerate = "Clinical follow-up within 48 hours recommended. Monitor for fever, rash, joint pain or chills."
	recommendationLow      = "No immediate action required. Advise standard mosquito-bite precautions."
)

// Fallback computes a deterministic rule-based risk classification when the
// remote scorer cannot be reached. Same input, same output: no randomness, no
// I/O. The returned factors include every rule that fired plus the raw score
// so the basis of the classification can be audited later.
func Fallback(req model.PredictionRequest) *model.PredictionResult {
	score := 0
	factors := map[string]any{}

	switch {
	case req.Age > 50:
		score += 2
		factors["age"] = fmt.Sprintf("age %d over 50 (+2)", req.Age)
	case req.Age > 30:
		score++
		factors["age"] = fmt.Sprintf("age %d over 30 (+1)", req.Age)
	}

	if req.Sex == model.SexFemale {
		score++
		factors["sex"] = "female, elevated Zika complication profile (+1)"
	}

	travel := strings.ToLower(req.TravelHistory)
	if travel != "" {
		if region, ok := matchKeyword(travel, highRiskRegions); ok {
			score += 3
			factors["travel_history"] = fmt.Sprintf("high-risk region %q (+3)", region)
		} else if _, ok := matchKeyword(travel, travelKeywords); ok {
			score++
			factors["travel_history"] = "recent travel reported (+1)"
		}
	}

	factors["score"] = score

	level, confidence := classify(score)
	return &model.PredictionResult{
		RiskLevel:         level,
		Confidence:        confidence,
		Recommendation:    recommendationFor(level),
		FactorsConsidered: factors,
		Source:            model.SourceFallback,
	}
}

// classify maps a rule score onto a risk tier. High scores pair with high
// confidence, very low scores are confidently low risk, and the band in
// between is genuinely uncertain.
func classify(score int) (model.RiskLevel, float64) {
	switch {
	case score >= 4:
		return model.RiskHigh, 0.85
	case score >= 2:
		return model.RiskModerate, 0.65
	default:
		return model.RiskLow, 0.90
	}
}

func recommendationFor(level model.RiskLevel) string {
	switch level {
	case model.RiskHigh:
		return recommendationHigh
	case model.RiskModerate:
		return recommendationModerate
	default:
		return recommendationLow
	}
}

func matchKeyword(text string, keywords []string) (string, bool) {
	return lo.Find(keywords, func(kw string) bool {
		return strings.Contains(text, kw)
	})
}
