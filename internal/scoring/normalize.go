package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

// The remote scorer has gone through several response formats: a nested
// {"prediction": {...}} envelope, a flat snake_case body and the current
// camelCase body. Normalization accepts all three so a model redeploy does
// not break the API.

const defaultRemoteConfidence = 0.5

func normalizeRemote(body []byte) (*model.PredictionResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remote scorer returned unparseable body: %w", err)
	}
	if nested, ok := raw["prediction"].(map[string]any); ok {
		raw = nested
	}

	levelText, ok := firstString(raw, "riskLevel", "risk_level")
	if !ok {
		return nil, errors.New("remote scorer response carries no risk level")
	}
	level, err := parseRiskLevel(levelText)
	if err != nil {
		return nil, err
	}

	confidence, ok := firstFloat(raw, "confidence")
	if !ok {
		confidence = defaultRemoteConfidence
	}
	// Some model versions report percentages.
	if confidence > 1 {
		confidence /= 100
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	recommendation, ok := firstString(raw, "recommendation")
	if !ok || recommendation == "" {
		recommendation = recommendationFor(level)
	}

	factors := firstMap(raw, "factorsConsidered", "factors_considered", "factors")
	if factors == nil {
		factors = map[string]any{}
	}

	return &model.PredictionResult{
		RiskLevel:         level,
		Confidence:        confidence,
		Recommendation:    recommendation,
		FactorsConsidered: factors,
		Source:            model.SourceRemote,
	}, nil
}

func parseRiskLevel(s string) (model.RiskLevel, error) {
	v := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	switch {
	case strings.HasPrefix(v, "HIGH"):
		return model.RiskHigh, nil
	case strings.HasPrefix(v, "MODERATE"), strings.HasPrefix(v, "MEDIUM"):
		return model.RiskModerate, nil
	case strings.HasPrefix(v, "LOW"):
		return model.RiskLow, nil
	}
	return "", fmt.Errorf("remote scorer returned unrecognized risk level %q", s)
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func firstFloat(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := raw[k].(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func firstMap(raw map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if m, ok := raw[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}
