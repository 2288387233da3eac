package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW RISK"
	RiskModerate RiskLevel = "MODERATE RISK"
	RiskHigh     RiskLevel = "HIGH RISK"
)

type ResultSource string

const (
	SourceRemote   ResultSource = "remote"
	SourceFallback ResultSource = "fallback"
)

// PredictionRequest is the patient input a triage prediction is computed from.
// Age and Sex are mandatory; everything else is best-effort context.
type PredictionRequest struct {
	PatientID     string   `json:"patient_id,omitempty" bson:"patient_id,omitempty"`
	Age           int      `json:"age" bson:"age"`
	Sex           Sex      `json:"sex" bson:"sex"`
	TravelHistory string   `json:"travel_history,omitempty" bson:"travel_history,omitempty"`
	Symptoms      []string `json:"symptoms,omitempty" bson:"symptoms,omitempty"`
	Comorbidities []string `json:"comorbidities,omitempty" bson:"comorbidities,omitempty"`
}

// PredictionResult is the canonical classification shape, regardless of
// whether the remote scorer or the local heuristic produced it. Confidence is
// always on the 0-1 scale. Results are never mutated after construction.
type PredictionResult struct {
	RiskLevel         RiskLevel      `json:"riskLevel" bson:"risk_level"`
	Confidence        float64        `json:"confidence" bson:"confidence"`
	Recommendation    string         `json:"recommendation" bson:"recommendation"`
	FactorsConsidered map[string]any `json:"factorsConsidered" bson:"factors_considered"`
	Source            ResultSource   `json:"source" bson:"source"`
}

// Patient is keyed by the external patient identifier and created lazily on
// the first prediction that references it. This service never deletes patients.
type Patient struct {
	ID         primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	PatientID  string             `json:"patient_id" bson:"patient_id"`
	Age        int                `json:"age" bson:"age"`
	Sex        Sex                `json:"sex" bson:"sex"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	LastSeenAt time.Time          `json:"last_seen_at" bson:"last_seen_at"`
}

// ClinicalRecord associates one request with the result computed for it, the
// identity of the requester and a timestamp. Records are insert-only; the only
// way one disappears is an explicit operator delete.
type ClinicalRecord struct {
	ID          primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	RecordID    string             `json:"record_id" bson:"record_id"`
	PatientID   string             `json:"patient_id" bson:"patient_id"`
	Request     PredictionRequest  `json:"request" bson:"request"`
	Result      PredictionResult   `json:"result" bson:"result"`
	RequestedBy string             `json:"requested_by" bson:"requested_by"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// SourceStats summarizes persisted records for one result source, so the
// remote-scored and locally-scored populations can be reported separately.
type SourceStats struct {
	Source        ResultSource `json:"source" bson:"_id"`
	Count         int64        `json:"count" bson:"count"`
	AvgConfidence float64      `json:"avg_confidence" bson:"avg_confidence"`
}
