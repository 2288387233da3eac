package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

// Store is the persistence surface the orchestrator writes through. Patient
// writes are upsert-by-external-id, record writes are insert-only.
type Store interface {
	UpsertPatient(ctx context.Context, p model.Patient) (*model.Patient, error)
	InsertRecord(ctx context.Context, rec model.ClinicalRecord) error
}

// remoteScorer is satisfied by RemoteClient and substituted in tests.
type remoteScorer interface {
	Predict(ctx context.Context, req model.PredictionRequest) (*model.PredictionResult, error)
}

// Config tunes the retry policy.
type Config struct {
	// MaxAttempts bounds calls to the remote scorer per prediction.
	MaxAttempts int
	// RetryDelay is the fixed wait after a transient failure.
	RetryDelay time.Duration
	// RateLimitDelay is the linear backoff base used for a 429 that carries
	// no Retry-After hint: attempt n waits n * RateLimitDelay.
	RateLimitDelay time.Duration
	// AgeMin and AgeMax bound plausible patient ages.
	AgeMin, AgeMax int
}

// Orchestrator produces one risk classification per request: remote when the
// scoring service cooperates, local fallback when it does not. Every
// classification it produces is persisted; persistence failures never surface
// to the caller.
type Orchestrator struct {
	cfg    Config
	remote remoteScorer
	store  Store

	// sleep is swapped out in tests so retry waits can be observed without
	// being served.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(cfg Config, remote *RemoteClient, store Store) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		remote: remote,
		store:  store,
		sleep:  sleepCtx,
	}
}

// Outcome bundles everything one prediction produced. Patient and Record are
// nil when the corresponding write failed; Result is always set.
type Outcome struct {
	Result  *model.PredictionResult
	Patient *model.Patient
	Record  *model.ClinicalRecord
}

// Predict validates the request, obtains a classification and persists it.
// The only errors it returns are *ValidationError (bad input) and
// *OverloadedError (bot-mitigated scorer). Every other remote failure degrades
// to the deterministic fallback scorer.
func (o *Orchestrator) Predict(ctx context.Context, req model.PredictionRequest, requestedBy string) (*Outcome, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	result, err := o.callRemote(ctx, req)
	if err != nil {
		var overloaded *OverloadedError
		if errors.As(err, &overloaded) {
			return nil, err
		}
		log.Printf("remote scorer unavailable, using local fallback: %v", err)
		result = Fallback(req)
	}

	out := &Outcome{Result: result}
	o.persist(ctx, req, requestedBy, out)
	return out, nil
}

// callRemote drives the bounded retry loop. Rate limits honor the server's
// Retry-After hint and otherwise back off linearly; transient failures wait a
// fixed delay. The final attempt's failure is returned without a wait, and an
// unrecoverable response aborts the loop immediately.
func (o *Orchestrator) callRemote(ctx context.Context, req model.PredictionRequest) (*model.PredictionResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := o.remote.Predict(ctx, req)
		if err == nil {
			return result, nil
		}

		var overloaded *OverloadedError
		if errors.As(err, &overloaded) {
			return nil, err
		}

		var rateLimited *rateLimitError
		var transient *transientError
		retryable := errors.As(err, &rateLimited) || errors.As(err, &transient)
		if !retryable || attempt >= o.cfg.MaxAttempts {
			return nil, err
		}

		wait := o.cfg.RetryDelay
		if rateLimited != nil {
			wait = rateLimited.RetryAfter
			if wait <= 0 {
				wait = time.Duration(attempt) * o.cfg.RateLimitDelay
			}
		}
		log.Printf("remote scorer attempt %d/%d failed (%v), retrying in %s", attempt, o.cfg.MaxAttempts, err, wait)
		if err := o.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry wait interrupted: %w", err)
		}
	}
}

// persist upserts the patient and appends the clinical record. Failures are
// logged and swallowed so a storage outage never costs the caller an answer.
func (o *Orchestrator) persist(ctx context.Context, req model.PredictionRequest, requestedBy string, out *Outcome) {
	patientID := req.PatientID
	if patientID == "" {
		// Walk-in without an identifier: mint one so the record still
		// references a patient document.
		patientID = primitive.NewObjectID().Hex()
	}

	now := time.Now().UTC()
	patient, err := o.store.UpsertPatient(ctx, model.Patient{
		PatientID:  patientID,
		Age:        req.Age,
		Sex:        req.Sex,
		CreatedAt:  now,
		LastSeenAt: now,
	})
	if err != nil {
		log.Printf("failed to upsert patient %s: %v", patientID, err)
	} else {
		out.Patient = patient
	}

	rec := model.ClinicalRecord{
		RecordID:    uuid.NewString(),
		PatientID:   patientID,
		Request:     req,
		Result:      *out.Result,
		RequestedBy: requestedBy,
		CreatedAt:   now,
	}
	if err := o.store.InsertRecord(ctx, rec); err != nil {
		log.Printf("failed to save clinical record for patient %s: %v", patientID, err)
		return
	}
	out.Record = &rec
}

func (o *Orchestrator) validate(req model.PredictionRequest) error {
	if req.Age < o.cfg.AgeMin || req.Age > o.cfg.AgeMax {
		return &ValidationError{
			Field:  "age",
			Reason: fmt.Sprintf("must be between %d and %d", o.cfg.AgeMin, o.cfg.AgeMax),
		}
	}
	switch req.Sex {
	case model.SexMale, model.SexFemale:
	default:
		return &ValidationError{Field: "sex", Reason: `must be "M" or "F"`}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
